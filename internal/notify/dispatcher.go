package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type task struct {
	name string
	fn   func(ctx context.Context) error
}

// Dispatcher runs notification and audit deliveries off the request path.
// Deliveries that fail are logged and dropped. When the buffer is full new
// work is dropped rather than blocking the caller.
type Dispatcher struct {
	logger  *slog.Logger
	timeout time.Duration
	ch      chan task
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
}

func NewDispatcher(logger *slog.Logger, buffer int, timeout time.Duration) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	d := &Dispatcher{
		logger:  logger,
		timeout: timeout,
		ch:      make(chan task, buffer),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for t := range d.ch {
		d.exec(t)
	}
}

func (d *Dispatcher) exec(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := t.fn(ctx); err != nil {
		d.logger.WarnContext(ctx, "Background delivery failed", slog.String("task", t.name), slog.Any("error", err))
	}
}

// Go queues fn. It never blocks and never returns an error to the caller.
func (d *Dispatcher) Go(name string, fn func(ctx context.Context) error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("Dispatcher closed, dropping task", slog.String("task", name))
		return
	}
	select {
	case d.ch <- task{name: name, fn: fn}:
	default:
		d.logger.Warn("Dispatcher buffer full, dropping task", slog.String("task", name))
	}
}

// Close stops accepting work and waits for queued tasks to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.ch)
		d.mu.Unlock()
	})
	d.wg.Wait()
}
