package engine

import "fmt"

// LineError locates a runtime problem in a running script. It is the
// single user-visible error shape; the engine renders it through the
// speak collaborator and logs everything else internally.
type LineError struct {
	Kind   string // short category, e.g. "missing tag"
	Line   int
	Script string
	Detail string
}

func (e *LineError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("error at line %d of %s: %s", e.Line, e.Script, e.Kind)
	}
	return fmt.Sprintf("error at line %d of %s: %s (%s)", e.Line, e.Script, e.Kind, e.Detail)
}

// Spoken renders the error the way it is announced to the user.
func (e *LineError) Spoken() string {
	return fmt.Sprintf("There was a %s error at line %d of %s.", e.Kind, e.Line, displayName(e.Script))
}
