package scheduler

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDependencyCycle means the remaining subtasks form a cycle and can
	// never become ready. This is the only condition that aborts a run.
	ErrDependencyCycle = errors.New("dependency cycle detected")

	// ErrUnresolvedDependency means a remaining subtask depends on an ID
	// that does not exist in the session, so it can never become ready.
	ErrUnresolvedDependency = errors.New("unresolved subtask dependency")
)

// SchedulingError is the fatal error raised when no remaining subtask can
// become ready. Stuck lists the subtask IDs that cannot run; Missing
// lists dependency IDs absent from the session (empty for a true cycle).
type SchedulingError struct {
	Stuck   []string
	Missing []string
	kind    error
}

func (e *SchedulingError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%v: subtasks [%s] reference missing dependencies [%s]",
			e.kind, strings.Join(e.Stuck, ", "), strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("%v: subtasks [%s] can never become ready",
		e.kind, strings.Join(e.Stuck, ", "))
}

func (e *SchedulingError) Unwrap() error {
	return e.kind
}
