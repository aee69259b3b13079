package jobs

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(time.Minute, slog.Default())
	err := s.Register("bad", "not a schedule", func(context.Context) error { return nil })
	require.Error(t, err)
	assert.Empty(t, s.ListJobs())
}

func TestRegisterAcceptsSixFieldSchedule(t *testing.T) {
	s := NewScheduler(time.Minute, slog.Default())
	err := s.Register("sync", "0 0 5 * * *", func(context.Context) error { return nil })
	require.NoError(t, err)
	require.Len(t, s.ListJobs(), 1)
	assert.Equal(t, "sync", s.ListJobs()[0].Name)
}

func TestRunNowExecutesJob(t *testing.T) {
	s := NewScheduler(time.Minute, slog.Default())

	var ran atomic.Bool
	done := make(chan struct{})
	err := s.Register("once", "0 0 5 * * *", func(context.Context) error {
		ran.Store(true)
		close(done)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, s.RunNow("once"))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
	assert.True(t, ran.Load())
}

func TestRunNowUnknownJobIsNoop(t *testing.T) {
	s := NewScheduler(time.Minute, slog.Default())
	assert.NoError(t, s.RunNow("missing"))
}
