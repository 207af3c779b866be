package binding

// Outcome records how one line definition fared during binding.
type Outcome struct {
	Chip string
	Line string
	Var  string

	// Bound is true when the line joined the registry.
	Bound bool

	// Acquired is true when this process instance owns the hardware line.
	// A bound but unacquired line belongs to the companion mode's
	// instance.
	Acquired bool

	// Reason explains a skip, or notes deferred ownership.
	Reason string
}

// Report is the per-line outcome of one binding pass, in document order.
type Report struct {
	Entries []Outcome
}

func (r *Report) add(o Outcome) {
	r.Entries = append(r.Entries, o)
}

// BoundCount returns the number of lines that joined the registry.
func (r *Report) BoundCount() int {
	n := 0
	for _, e := range r.Entries {
		if e.Bound {
			n++
		}
	}
	return n
}

// SkippedCount returns the number of lines dropped during binding.
func (r *Report) SkippedCount() int {
	return len(r.Entries) - r.BoundCount()
}
