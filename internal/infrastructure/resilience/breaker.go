package resilience

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// State is the breaker state, re-exported so callers do not import gobreaker.
type State = gobreaker.State

const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

// Settings configures a Breaker
type Settings struct {
	// Name appears in state change callbacks and logs
	Name string
	// FailureThreshold is the number of consecutive failures that opens the breaker
	FailureThreshold uint32
	// Cooldown is how long the breaker stays open before a trial call is allowed
	Cooldown time.Duration
	// OnStateChange is called whenever the state changes
	OnStateChange func(name string, from, to State)
}

// Breaker short-circuits an operation that keeps failing. The supervisor
// wraps PTY allocation in one so a host without PTY support goes straight
// to the fallback backend instead of retrying on every respawn.
type Breaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// New creates a breaker with the given settings
func New[T any](settings Settings) *Breaker[T] {
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = 3
	}
	if settings.Cooldown == 0 {
		settings.Cooldown = time.Minute
	}
	threshold := settings.FailureThreshold

	return &Breaker[T]{
		cb: gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
			Name:        settings.Name,
			MaxRequests: 1,
			Timeout:     settings.Cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: settings.OnStateChange,
		}),
	}
}

// Execute runs fn unless the breaker is open
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	return b.cb.Execute(fn)
}

// State returns the current state
func (b *Breaker[T]) State() State {
	return b.cb.State()
}

// Name returns the breaker name
func (b *Breaker[T]) Name() string {
	return b.cb.Name()
}

// IsRejected reports whether err came from the breaker rather than the wrapped call
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
