package binding

import "errors"

// Sentinel errors for binding.
var (
	// ErrUnknownAttribute indicates an attribute value outside the
	// recognised vocabulary.
	ErrUnknownAttribute = errors.New("binding: unknown attribute value")

	// ErrDuplicateVariable indicates a second line claimed an already
	// bound variable.
	ErrDuplicateVariable = errors.New("binding: variable already bound")

	// ErrMonitorCapacity indicates the edge-monitored set is full.
	ErrMonitorCapacity = errors.New("binding: monitored line capacity exceeded")
)
