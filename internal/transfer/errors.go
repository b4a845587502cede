package transfer

import "fmt"

// FormatError reports a malformed import envelope. Nothing has been
// written when it is returned.
type FormatError struct {
	Field  string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Field == "" {
		return "invalid journey format: " + e.Reason
	}
	return fmt.Sprintf("invalid journey format: %s %s", e.Field, e.Reason)
}
