package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRegister(t *testing.T) {
	s := NewScheduler(nil, time.Second)

	require.NoError(t, s.Register("close-periods", "@every 1h", func(context.Context) error { return nil }))
	require.NoError(t, s.Register("disabled", "", func(context.Context) error { return nil }))
	assert.Equal(t, 1, s.Entries())

	err := s.Register("broken", "every tuesday", func(context.Context) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestSchedulerRunBoundsTaskWithTimeout(t *testing.T) {
	s := NewScheduler(nil, 20*time.Millisecond)
	var sawDeadline bool
	s.run("slow", func(ctx context.Context) error {
		_, sawDeadline = ctx.Deadline()
		<-ctx.Done()
		return ctx.Err()
	})
	assert.True(t, sawDeadline)

	s.run("failing", func(context.Context) error { return errors.New("db down") })
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(nil, time.Second)
	ran := make(chan struct{}, 1)
	require.NoError(t, s.Register("tick", "@every 1s", func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}))
	s.Start()
	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("task did not run")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
