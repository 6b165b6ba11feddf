package simulation

import (
	"errors"
	"fmt"

	"github.com/richard-senior/leaguesim/pkg/league"
)

var (
	// ErrResourceExhausted means the worker pool could not be sized above zero
	ErrResourceExhausted = errors.New("no workers available for simulation")
	// ErrInvalidOptions wraps every rejected Options value
	ErrInvalidOptions = errors.New("invalid simulation options")
)

// InputError describes a fixture that cannot be simulated against the standings.
// It fails the iteration that hit it, never the run.
type InputError struct {
	Fixture league.Fixture
	Reason  string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("fixture %s: %s", e.Fixture, e.Reason)
}
