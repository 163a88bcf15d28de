package extension

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateUnit is returned when a unit name is registered twice and neither
	// registration is overridable.
	ErrDuplicateUnit = errors.New("duplicate extension unit")
	// ErrMissingDependency is returned when a unit requires a unit that was never registered.
	ErrMissingDependency = errors.New("missing extension dependency")
	// ErrDependencyCycle is returned when unit requirements form a cycle.
	ErrDependencyCycle = errors.New("extension dependency cycle")
	// ErrTypeConflict is returned when two contributions declare the same node or mark type.
	ErrTypeConflict = errors.New("type conflict")
	// ErrActionConflict is returned when an action id is registered twice.
	ErrActionConflict = errors.New("action conflict")
	// ErrKeymapConflict is returned when one key is bound to two different actions.
	ErrKeymapConflict = errors.New("keymap conflict")
	// ErrApplyFailed wraps errors returned by a unit's Apply function.
	ErrApplyFailed = errors.New("extension apply failed")
)

// BuildError is a single registry build failure attributed to a unit.
type BuildError struct {
	Unit string
	Err  error
}

func (e *BuildError) Error() string {
	if e.Unit == "" {
		return e.Err.Error()
	}

	return fmt.Sprintf("extension %q: %v", e.Unit, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// BuildErrors returns the individual failures of a Build error.
func BuildErrors(err error) []*BuildError {
	var out []*BuildError
	var walk func(err error)
	walk = func(err error) {
		if err == nil {
			return
		}
		if buildErr, ok := err.(*BuildError); ok {
			out = append(out, buildErr)
			return
		}
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				walk(inner)
			}
		}
	}
	walk(err)
	return out
}

func cyclePath(stack []string, start string) string {
	for idx, name := range stack {
		if name == start {
			return strings.Join(append(append([]string(nil), stack[idx:]...), start), " -> ")
		}
	}

	return start
}
