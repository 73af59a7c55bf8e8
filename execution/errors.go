package execution

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/flashscalper/risk"
)

var (
	ErrInvalidSignal   = errors.New("invalid signal")
	ErrBelowMinimum    = errors.New("below exchange minimum")
	ErrAboveMaximum    = errors.New("above exchange maximum")
	ErrNoPrice         = errors.New("no mark price")
	ErrInvalidPosition = errors.New("invalid position")
)

// DeniedError is returned when the risk gate refuses a position.
type DeniedError struct {
	Decision risk.Decision
}

func (e *DeniedError) Error() string {
	return "risk gate denied: " + e.Decision.Reason()
}

// PanicError is a recovered panic from inside an orchestrator.
type PanicError struct {
	Op    string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s: unexpected failure: %v", e.Op, e.Value)
}
