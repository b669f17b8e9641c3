package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errVendor = errors.New("vendor 503")

func fail(b *Breaker) error {
	return b.Execute(func() error { return errVendor })
}

func succeed(b *Breaker) error {
	return b.Execute(func() error { return nil })
}

func TestBreakerStartsClosed(t *testing.T) {
	b := New("paystack", Config{})
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "paystack", b.Name())
}

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	b := New("stripe", Config{})

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, fail(b), errVendor)
	}
	assert.Equal(t, StateOpen, b.State())

	// While open, calls are rejected without running fn.
	called := false
	err := b.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpenState)
	assert.False(t, called)
}

func TestBreakerSuccessResetsConsecutiveFailures(t *testing.T) {
	b := New("stripe", Config{})

	require.Error(t, fail(b))
	require.Error(t, fail(b))
	require.NoError(t, succeed(b))
	require.Error(t, fail(b))
	require.Error(t, fail(b))

	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenAfterTimeout(t *testing.T) {
	b := New("stripe", Config{Timeout: 20 * time.Millisecond})

	for i := 0; i < 3; i++ {
		fail(b)
	}
	require.Equal(t, StateOpen, b.State())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, b.State())

	// A successful probe closes the circuit again.
	require.NoError(t, succeed(b))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := New("stripe", Config{Timeout: 20 * time.Millisecond})

	for i := 0; i < 3; i++ {
		fail(b)
	}
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	require.Error(t, fail(b))
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerHalfOpenCapsProbes(t *testing.T) {
	b := New("stripe", Config{Timeout: 20 * time.Millisecond, MaxRequests: 1})

	for i := 0; i < 3; i++ {
		fail(b)
	}
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- b.Execute(func() error {
			<-release
			return nil
		})
	}()

	// Second probe while the first is in flight is rejected.
	assert.Eventually(t, func() bool {
		err := b.Execute(func() error { return nil })
		return errors.Is(err, ErrTooManyRequests)
	}, time.Second, time.Millisecond)

	close(release)
	require.NoError(t, <-done)
}

func TestBreakerCustomReadyToTrip(t *testing.T) {
	b := New("paystack", Config{
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})

	require.Error(t, fail(b))
	assert.Equal(t, StateOpen, b.State())
}

func TestRegistryReusesBreakerPerProvider(t *testing.T) {
	r := NewRegistry(Config{})

	b1 := r.Get("paystack")
	b2 := r.Get("paystack")
	b3 := r.Get("stripe")

	assert.Same(t, b1, b2)
	assert.NotSame(t, b1, b3)

	states := r.States()
	assert.Equal(t, StateClosed, states["paystack"])
	assert.Equal(t, StateClosed, states["stripe"])
}
