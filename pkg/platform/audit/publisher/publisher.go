// Package publisher emits audit events to a store, either synchronously or
// through a bounded in-process queue drained by a worker.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	audit "healthbff/pkg/platform/audit"
	"healthbff/pkg/platform/audit/worker"
)

// ErrBufferFull is returned when the async queue cannot accept an event.
var ErrBufferFull = errors.New("audit buffer full")

type Publisher struct {
	store  audit.Store
	logger *slog.Logger
	now    func() time.Time

	bufferSize int
	onDrop     func()
	inbox      chan audit.Event
	done       chan struct{}
	closeOnce  sync.Once
	closed     bool
	mu         sync.RWMutex
}

type Option func(*Publisher)

// WithAsyncBuffer switches Emit to enqueue into a queue of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) { p.bufferSize = n }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// WithDropCounter registers a callback invoked for every dropped event.
func WithDropCounter(fn func()) Option {
	return func(p *Publisher) { p.onDrop = fn }
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	if p.bufferSize > 0 {
		p.inbox = make(chan audit.Event, p.bufferSize)
		p.done = make(chan struct{})
		w := worker.NewWorker(store, p.inbox, p.logger)
		go func() {
			defer close(p.done)
			_ = w.Run(context.Background())
		}()
	}
	return p
}

// Emit records an event. In async mode a full queue drops the event and
// returns ErrBufferFull; callers on the request path ignore the error.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	event = audit.Normalize(event, p.now())
	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.dropped()
		return ErrBufferFull
	}
	select {
	case p.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.dropped()
		return ErrBufferFull
	}
}

func (p *Publisher) dropped() {
	if p.onDrop != nil {
		p.onDrop()
	}
}

// Close stops accepting events and waits for the queue to drain.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if p.inbox == nil {
			return
		}
		p.mu.Lock()
		p.closed = true
		close(p.inbox)
		p.mu.Unlock()
		<-p.done
	})
}
