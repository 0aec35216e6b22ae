package typing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu    sync.Mutex
	calls []int64
	err   error
	sent  chan struct{}
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(chan struct{}, 100)}
}

func (f *fakeSender) SendTyping(ctx context.Context, chatID int64) error {
	f.mu.Lock()
	f.calls = append(f.calls, chatID)
	f.mu.Unlock()

	select {
	case f.sent <- struct{}{}:
	default:
	}
	return f.err
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitSent(t *testing.T, f *fakeSender) {
	t.Helper()
	select {
	case <-f.sent:
	case <-time.After(time.Second):
		t.Fatal("typing action was not sent")
	}
}

func TestStartSendsImmediately(t *testing.T) {
	sender := newFakeSender()
	ind := New(sender, time.Hour, testLogger())

	stop := ind.Start(context.Background(), 42)
	waitSent(t, sender)
	stop()

	assert.Equal(t, []int64{42}, sender.calls)
}

func TestStartTicks(t *testing.T) {
	sender := newFakeSender()
	ind := New(sender, 5*time.Millisecond, testLogger())

	stop := ind.Start(context.Background(), 1)
	for i := 0; i < 3; i++ {
		waitSent(t, sender)
	}
	stop()

	assert.GreaterOrEqual(t, sender.count(), 3)
}

func TestStopHaltsEmission(t *testing.T) {
	sender := newFakeSender()
	ind := New(sender, 5*time.Millisecond, testLogger())

	stop := ind.Start(context.Background(), 1)
	waitSent(t, sender)
	stop()

	after := sender.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, sender.count())

	// second call is a no-op
	stop()
}

func TestStopIsPrompt(t *testing.T) {
	sender := newFakeSender()
	ind := New(sender, time.Hour, testLogger())

	stop := ind.Start(context.Background(), 1)
	waitSent(t, sender)

	start := time.Now()
	stop()
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestRunCancelledBeforeFirstTick(t *testing.T) {
	sender := newFakeSender()
	ind := New(sender, time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ind.Run(ctx, 1)

	assert.Equal(t, 0, sender.count())
}

func TestSendErrorsAreSwallowed(t *testing.T) {
	sender := newFakeSender()
	sender.err = errors.New("flood wait")
	ind := New(sender, 5*time.Millisecond, testLogger())

	stop := ind.Start(context.Background(), 1)
	waitSent(t, sender)
	waitSent(t, sender)
	stop()

	require.GreaterOrEqual(t, sender.count(), 2)
}

func TestNewDefaultsInterval(t *testing.T) {
	ind := New(newFakeSender(), 0, testLogger())
	assert.Equal(t, DefaultInterval, ind.interval)
}
