package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// outbox serialises outbound data messages at a bounded rate.
type outbox struct {
	queue   chan []byte
	limiter *rate.Limiter
	send    func(ctx context.Context, payload []byte) error
	logger  zerolog.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newOutbox(interval time.Duration, size int, send func(context.Context, []byte) error, logger zerolog.Logger) *outbox {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &outbox{
		queue:   make(chan []byte, size),
		limiter: rate.NewLimiter(limit, 1),
		send:    send,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// run drains the queue until it is closed or ctx is done.
func (o *outbox) run(ctx context.Context) {
	defer close(o.done)
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-o.queue:
			if !ok {
				return
			}
			if err := o.limiter.Wait(ctx); err != nil {
				return
			}
			if err := o.send(ctx, payload); err != nil {
				o.logger.Warn().Err(err).Int("bytes", len(payload)).Msg("Outbound message failed")
			}
		}
	}
}

// enqueue adds a message without blocking.
func (o *outbox) enqueue(payload []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrNotLive
	}
	select {
	case o.queue <- payload:
		return nil
	default:
		return ErrOutboxFull
	}
}

// close stops accepting messages and waits for queued ones to drain.
func (o *outbox) close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	close(o.queue)
	o.mu.Unlock()
	<-o.done
}
