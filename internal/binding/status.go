package binding

import (
	"encoding/json"
	"io"
)

// statusChip and statusLine are the wire shape of the status report.
type statusChip struct {
	Chip  string       `json:"chip"`
	Lines []statusLine `json:"lines"`
}

type statusLine struct {
	Line int    `json:"line"`
	Name string `json:"name"`
	Var  string `json:"var"`
}

// WriteStatus serializes the registry's bound lines to w as a JSON array, one
// object per chip, chips and lines in their original definition order. Lines
// the hardware reports no name for appear as "unknown".
func WriteStatus(w io.Writer, r *Registry) error {
	chips := make([]statusChip, 0, len(r.Chips))
	for _, chip := range r.Chips {
		sc := statusChip{Chip: chip.Name, Lines: make([]statusLine, 0, len(chip.Lines))}
		for _, line := range chip.Lines {
			name := line.Name
			if name == "" {
				name = "unknown"
			}
			sc.Lines = append(sc.Lines, statusLine{
				Line: line.Offset,
				Name: name,
				Var:  line.VarName,
			})
		}
		chips = append(chips, sc)
	}

	enc := json.NewEncoder(w)
	return enc.Encode(chips)
}
