package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/deployd/internal/config"
)

func TestLimiters_ExternalBucketsArePerCaller(t *testing.T) {
	l := NewLimiters(config.GatewayConfig{
		ExternalRPS:       2,
		PlanningPerMinute: 4,
		MaxInFlight:       10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// Each caller gets an initial burst token independent of the others.
	require.NoError(t, l.WaitExternal(ctx, "sess-a"))
	require.NoError(t, l.WaitExternal(ctx, "sess-b"))

	// A second immediate call on the same bucket has to wait for refill.
	shortCtx, shortCancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer shortCancel()
	err := l.WaitExternal(shortCtx, "sess-a")
	assert.Error(t, err, "same-caller call inside the refill window must block")
}

func TestLimiters_PlanningBurstMatchesPerMinuteBudget(t *testing.T) {
	l := NewLimiters(config.GatewayConfig{
		ExternalRPS:       2,
		PlanningPerMinute: 4,
		MaxInFlight:       10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	for i := 0; i < 4; i++ {
		require.NoError(t, l.WaitPlanning(ctx, "sess-a"), "call %d within budget", i)
	}

	shortCtx, shortCancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer shortCancel()
	assert.Error(t, l.WaitPlanning(shortCtx, "sess-a"), "fifth call in the window must block")
}

func TestLimiters_SemaphoreQueuesAndReleases(t *testing.T) {
	l := NewLimiters(config.GatewayConfig{
		ExternalRPS:       2,
		PlanningPerMinute: 4,
		MaxInFlight:       2,
	})

	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx))
	require.NoError(t, l.Acquire(ctx))
	assert.Equal(t, 2, l.InFlight())

	acquired := make(chan struct{})
	go func() {
		if err := l.Acquire(ctx); err == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("third acquire must queue behind the cap")
	case <-time.After(20 * time.Millisecond):
	}

	l.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("queued acquire must proceed after a release")
	}
}

func TestLimiters_AcquireHonorsContext(t *testing.T) {
	l := NewLimiters(config.GatewayConfig{MaxInFlight: 1})

	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Acquire(ctx), context.DeadlineExceeded)
}
