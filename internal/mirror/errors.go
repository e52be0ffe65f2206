package mirror

import (
	"errors"
	"fmt"
)

// ErrNotReady is reported for intents sent before Init
var ErrNotReady = errors.New("mirror is not initialized")

// OpError reports a failed intent. Section and Plane are -1 when the
// operation does not target one.
type OpError struct {
	Op      string
	Section int
	Plane   int
	Err     error
}

func (e *OpError) Error() string {
	switch {
	case e.Section < 0:
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	case e.Plane < 0:
		return fmt.Sprintf("%s on section %d failed: %v", e.Op, e.Section, e.Err)
	default:
		return fmt.Sprintf("%s on plane %d of section %d failed: %v", e.Op, e.Plane, e.Section, e.Err)
	}
}

func (e *OpError) Unwrap() error {
	return e.Err
}
