package flow

import (
	"errors"
	"fmt"
	"strings"
)

// ErrOperationTimeout marks a whole-operation budget breach. The machine
// force-aborts: listeners removed, surface closed, failure reported.
var ErrOperationTimeout = errors.New("operation timeout")

// ErrAlreadyFilled is returned by the cancel flow when the order turns out to
// have been filled before it went stale. The tracker marks it claimed instead.
var ErrAlreadyFilled = errors.New("order already filled")

// NotFoundError reports that an expected interactive element was absent after
// the full lookup policy ran. Candidates carries the names that were on the
// surface, for the log line.
type NotFoundError struct {
	Target     string
	Candidates []string
}

func (e *NotFoundError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("element %q not found (no surface)", e.Target)
	}
	return fmt.Sprintf("element %q not found among [%s]", e.Target, strings.Join(e.Candidates, ", "))
}

// StepTimeoutError reports that one select+wait step exhausted its budget.
type StepTimeoutError struct {
	Step string
}

func (e *StepTimeoutError) Error() string {
	return fmt.Sprintf("step %q timed out", e.Step)
}
