package breaker_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/breaker"
)

var errRemote = errors.New("remote failed")

func newBreaker(timeout time.Duration) *breaker.Breaker {
	return breaker.New("test", breaker.Config{
		MaxFailures:       2,
		OpenTimeout:       timeout,
		HalfOpenSuccesses: 1,
	}, slog.New(slog.DiscardHandler))
}

func TestDo_PassesResults(t *testing.T) {
	b := newBreaker(time.Minute)

	got, err := breaker.Do(context.Background(), b, func(context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, "closed", b.State())
	assert.Equal(t, uint64(1), b.Stats().Calls)
}

func TestDo_OpensAfterConsecutiveFailures(t *testing.T) {
	b := newBreaker(time.Minute)
	fail := func(context.Context) error { return errRemote }

	for i := 0; i < 2; i++ {
		err := breaker.Run(context.Background(), b, fail)
		assert.ErrorIs(t, err, errRemote)
	}
	assert.Equal(t, "open", b.State())

	called := false
	err := breaker.Run(context.Background(), b, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, breaker.ErrOpen)
	assert.False(t, called)
	assert.Equal(t, uint64(1), b.Stats().Rejected)
	assert.Equal(t, uint64(2), b.Stats().Failures)
}

func TestDo_HalfOpenRecovers(t *testing.T) {
	b := newBreaker(20 * time.Millisecond)
	for i := 0; i < 2; i++ {
		_ = breaker.Run(context.Background(), b, func(context.Context) error { return errRemote })
	}
	require.Equal(t, "open", b.State())

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, "half-open", b.State())
	require.NoError(t, breaker.Run(context.Background(), b, func(context.Context) error { return nil }))
	assert.Equal(t, "closed", b.State())
}

func TestDo_CancelledContext(t *testing.T) {
	b := newBreaker(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := breaker.Run(ctx, b, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(0), b.Stats().Calls)

	for i := 0; i < 3; i++ {
		_ = breaker.Run(context.Background(), b, func(context.Context) error { return context.Canceled })
	}
	assert.Equal(t, "closed", b.State(), "cancellations do not trip the circuit")
}
