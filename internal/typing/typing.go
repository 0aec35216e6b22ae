// Package typing keeps the Telegram "typing..." status visible while a reply
// is being computed.
package typing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval matches how long Telegram shows a chat action
const DefaultInterval = 5 * time.Second

// Sender emits the typing chat action
type Sender interface {
	SendTyping(ctx context.Context, chatID int64) error
}

// Indicator periodically signals that the bot is processing a message
type Indicator struct {
	sender   Sender
	interval time.Duration
	log      *slog.Logger
}

// New creates a new Indicator
func New(sender Sender, interval time.Duration, log *slog.Logger) *Indicator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Indicator{
		sender:   sender,
		interval: interval,
		log:      log,
	}
}

// Run emits the typing action every interval until ctx is cancelled. The
// first action is sent immediately. Send failures are logged and ignored.
func (i *Indicator) Run(ctx context.Context, chatID int64) {
	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()

	for {
		// the answer may already be out, no trailing action then
		if ctx.Err() != nil {
			return
		}

		if err := i.sender.SendTyping(ctx, chatID); err != nil && ctx.Err() == nil {
			i.log.Debug("send typing", "chat_id", chatID, "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Start runs the indicator in its own goroutine. The returned stop function
// cancels it and waits until it has exited; it is safe to call more than once.
func (i *Indicator) Start(ctx context.Context, chatID int64) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		i.Run(ctx, chatID)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
