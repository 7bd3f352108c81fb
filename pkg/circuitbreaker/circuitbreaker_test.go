package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
)

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(Settings{
		Name:                "test",
		Timeout:             time.Minute,
		ConsecutiveFailures: 2,
		OnStateChange: func(_ string, from, to string) {
			transitions = append(transitions, from+"->"+to)
		},
	})

	boom := errors.New("boom")
	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.Equal(t, "closed", cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.Equal(t, "open", cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.False(t, called)
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "ok"})
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, "closed", cb.State())
}
