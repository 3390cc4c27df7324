package cache

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// dispatcher delivers removal notifications on its own goroutine, in the
// order they were queued. The queue is unbounded so that a slow listener
// never blocks a cache operation.
type dispatcher[K comparable, V any] struct {
	fn  RemovalListener[K, V]
	log *slog.Logger

	mu      sync.Mutex
	queue   []removal[K, V]
	stopped bool

	wake chan struct{} // capacity 1; a pending token means "queue non-empty"
	quit chan struct{}
	done chan struct{}

	delivered atomic.Uint64
	failures  atomic.Uint64
}

func newDispatcher[K comparable, V any](fn RemovalListener[K, V], log *slog.Logger) *dispatcher[K, V] {
	d := &dispatcher[K, V]{
		fn:   fn,
		log:  log,
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go d.loop()
	return d
}

// enqueue schedules notifications. Calls after close are dropped.
func (d *dispatcher[K, V]) enqueue(rms ...removal[K, V]) {
	if len(rms) == 0 {
		return
	}
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, rms...)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher[K, V]) loop() {
	defer close(d.done)
	for {
		select {
		case <-d.wake:
			d.drain()
		case <-d.quit:
			d.drain()
			return
		}
	}
}

func (d *dispatcher[K, V]) drain() {
	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		d.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, rm := range batch {
			d.deliver(rm)
		}
	}
}

func (d *dispatcher[K, V]) deliver(rm removal[K, V]) {
	defer func() {
		if r := recover(); r != nil {
			d.failures.Add(1)
			d.log.Error("removal listener panicked",
				slog.Any("key", rm.key),
				slog.String("cause", rm.cause.String()),
				slog.Any("panic", r))
		}
		d.delivered.Add(1)
	}()
	d.fn(rm.key, rm.val, rm.cause)
}

// close delivers everything already queued, then stops the goroutine.
func (d *dispatcher[K, V]) close() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.stopped = true
	d.mu.Unlock()

	close(d.quit)
	<-d.done
}
