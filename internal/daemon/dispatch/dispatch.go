// Package dispatch runs presentation work on one designated goroutine.
package dispatch

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// DefaultQueueSize bounds how many tasks may be pending before Submit blocks.
const DefaultQueueSize = 64

// Dispatcher is a single-consumer task queue. Tasks run in submission order
// on whichever goroutine calls Run.
type Dispatcher struct {
	tasks     chan func()
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

// New creates a Dispatcher with room for size pending tasks.
func New(size int, logger *zap.Logger) *Dispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		tasks:  make(chan func(), size),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Submit queues fn. It returns false if the dispatcher is closed.
func (d *Dispatcher) Submit(fn func()) bool {
	select {
	case <-d.done:
		return false
	default:
	}
	select {
	case <-d.done:
		return false
	case d.tasks <- fn:
		return true
	}
}

// Run executes tasks until Close is called. Tasks still queued at that point
// are discarded. A panicking task is logged and does not stop the loop.
func (d *Dispatcher) Run() {
	for {
		select {
		case <-d.done:
			return
		case fn := <-d.tasks:
			d.exec(fn)
		}
	}
}

func (d *Dispatcher) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("presentation task panicked", zap.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}

// Close stops Run. Safe to call more than once.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() { close(d.done) })
}

// Done is closed once the dispatcher is closed.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }
