// Package gpiodef parses the GPIO mapping document.
//
// The document is a JSON file binding variable names to GPIO lines, one entry
// per chip with an ordered list of line definitions. All attribute values are
// strings; interpretation (offset parsing, direction and bias vocabulary) is
// the binder's job, so a document with unknown attribute values still parses
// here and fails per-line during binding.
package gpiodef

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Document is a parsed GPIO mapping document. Chips and their lines keep the
// order they appear in the file; binding and status reporting both depend on
// that order.
type Document struct {
	Chips []ChipDef `json:"gpiodef"`
}

// ChipDef maps one GPIO chip to a set of line definitions.
type ChipDef struct {
	Chip  string    `json:"chip"`
	Lines []LineDef `json:"lines"`
}

// LineDef is one line binding. Every attribute except Line and Var is
// optional; absent attributes take binder defaults.
type LineDef struct {
	Line        string `json:"line"`
	Var         string `json:"var"`
	ActiveState string `json:"active_state"`
	Direction   string `json:"direction"`
	Drive       string `json:"drive"`
	Bias        string `json:"bias"`
	Event       string `json:"event"`
}

// Load reads and parses the mapping document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading gpiodef file: %w", err)
	}
	return Parse(data)
}

// Parse parses a mapping document from raw JSON.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing gpiodef: %w", err)
	}
	if doc.Chips == nil {
		return nil, fmt.Errorf("parsing gpiodef: missing gpiodef array")
	}
	return &doc, nil
}

// Offset parses the line attribute as a non-negative line offset.
func (l LineDef) Offset() (int, error) {
	n, err := strconv.Atoi(l.Line)
	if err != nil {
		return 0, fmt.Errorf("line %q is not a number", l.Line)
	}
	if n < 0 {
		return 0, fmt.Errorf("line %d is negative", n)
	}
	return n, nil
}

// Dump renders the document back to indented JSON, used by verbose mode to
// echo what was parsed.
func (d *Document) Dump() string {
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return ""
	}
	return string(out)
}
