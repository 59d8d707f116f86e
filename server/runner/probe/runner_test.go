package probe

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	calls atomic.Int32
	err   atomic.Value
}

func (f *fakePinger) Ping(ctx context.Context) error {
	f.calls.Add(1)
	if err, ok := f.err.Load().(error); ok && err != nil {
		return err
	}
	return nil
}

func TestRunner_RunOnce(t *testing.T) {
	pinger := &fakePinger{}
	r := NewRunner(pinger, time.Minute)

	assert.False(t, r.Status().Healthy)
	assert.True(t, r.Status().CheckedAt.IsZero())

	status := r.RunOnce(context.Background())
	assert.True(t, status.Healthy)
	assert.Empty(t, status.Error)

	pinger.err.Store(errors.New("connection refused"))
	status = r.RunOnce(context.Background())
	assert.False(t, status.Healthy)
	assert.Equal(t, "connection refused", status.Error)
	assert.Equal(t, status, r.Status())
}

func TestRunner_RunStopsOnCancel(t *testing.T) {
	pinger := &fakePinger{}
	r := NewRunner(pinger, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return pinger.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
	assert.True(t, r.Status().Healthy)
}
