package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saptechnologies/sap-backend/internal/config"
)

type fakeOutbox struct {
	batches   []int
	calls     int32
	purged    int32
	retention time.Duration
	err       error
}

func (f *fakeOutbox) ProcessDue(ctx context.Context) (int, error) {
	i := int(atomic.AddInt32(&f.calls, 1)) - 1
	if f.err != nil {
		return 0, f.err
	}
	if i < len(f.batches) {
		return f.batches[i], nil
	}
	return 0, nil
}

func (f *fakeOutbox) PurgeCompleted(ctx context.Context, olderThan time.Duration) (int64, error) {
	atomic.AddInt32(&f.purged, 1)
	f.retention = olderThan
	return 3, nil
}

func TestRunOnceDrainsUntilEmpty(t *testing.T) {
	outbox := &fakeOutbox{batches: []int{20, 20, 4}}
	w := New(outbox, config.OutboxConfig{PollInterval: time.Second})

	total, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 44, total)
	assert.Equal(t, int32(4), atomic.LoadInt32(&outbox.calls))
}

func TestRunOnceStopsOnError(t *testing.T) {
	outbox := &fakeOutbox{err: errors.New("db down")}
	w := New(outbox, config.OutboxConfig{PollInterval: time.Second})

	_, err := w.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&outbox.calls))
}

func TestRunOnceHonoursCancelledContext(t *testing.T) {
	outbox := &fakeOutbox{batches: []int{1, 1, 1}}
	w := New(outbox, config.OutboxConfig{PollInterval: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	total, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Zero(t, atomic.LoadInt32(&outbox.calls))
}

func TestPurgeUsesRetention(t *testing.T) {
	outbox := &fakeOutbox{}
	w := New(outbox, config.OutboxConfig{PollInterval: time.Second, RetentionDays: 7})

	w.purge()
	assert.Equal(t, int32(1), atomic.LoadInt32(&outbox.purged))
	assert.Equal(t, 7*24*time.Hour, outbox.retention)

	disabled := New(outbox, config.OutboxConfig{PollInterval: time.Second})
	disabled.purge()
	assert.Equal(t, int32(1), atomic.LoadInt32(&outbox.purged))
}

func TestStartPollsAndStops(t *testing.T) {
	outbox := &fakeOutbox{}
	w := New(outbox, config.OutboxConfig{PollInterval: time.Second})

	require.NoError(t, w.Start())
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&outbox.calls) > 0
	}, 3*time.Second, 50*time.Millisecond)

	w.Stop()
	w.Stop()
}
