package adapter

import "fmt"

// ParseError reports a payload whose shape the adapter does not recognise.
type ParseError struct {
	What string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to parse %s: %v", e.What, e.Err)
	}
	return fmt.Sprintf("failed to parse %s", e.What)
}

func (e *ParseError) Unwrap() error { return e.Err }
