package circuitbreaker

import (
	"time"

	"github.com/sony/gobreaker"
)

type Settings struct {
	Name string
	// MaxRequests allowed through while half-open
	MaxRequests uint32
	// Interval clears failure counts while closed
	Interval time.Duration
	// Timeout is how long the breaker stays open
	Timeout time.Duration
	// ConsecutiveFailures trips the breaker
	ConsecutiveFailures uint32
	OnStateChange       func(name string, from, to string)
}

// CircuitBreaker guards calls to a flaky dependency
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

func NewCircuitBreaker(settings Settings) *CircuitBreaker {
	threshold := settings.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	st := gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	}
	if settings.OnStateChange != nil {
		st.OnStateChange = func(name string, from, to gobreaker.State) {
			settings.OnStateChange(name, from.String(), to.String())
		}
	}
	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(st)}
}

// Execute runs fn unless the breaker is open. gobreaker.ErrOpenState and
// gobreaker.ErrTooManyRequests are returned while tripped.
func (c *CircuitBreaker) Execute(fn func() error) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

func (c *CircuitBreaker) State() string {
	return c.cb.State().String()
}
