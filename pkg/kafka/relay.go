package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/vaidashi/getmethis-dashboard/pkg/logger"
)

// drainTimeout bounds how long Stop keeps delivering queued messages
const drainTimeout = 5 * time.Second

// Message is a keyed payload waiting to be published
type Message struct {
	Key   string
	Value []byte
}

// DeliverFunc publishes one message. ctx is cancelled when the relay gives up
// draining on Stop.
type DeliverFunc func(ctx context.Context, msg Message)

// Relay moves publishing off the caller's goroutine. Messages are queued in a
// bounded buffer and delivered one by one by a background worker; when the
// buffer is full new messages are dropped.
type Relay struct {
	name    string
	queue   chan Message
	deliver DeliverFunc
	logger  logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	quit   chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
	stopped bool
}

// NewRelay creates a relay buffering up to capacity messages. Call Start to
// begin delivering.
func NewRelay(name string, capacity int, deliver DeliverFunc, logger logger.Logger) *Relay {
	if capacity <= 0 {
		capacity = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Relay{
		name:    name,
		queue:   make(chan Message, capacity),
		deliver: deliver,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		quit:    make(chan struct{}),
	}
}

// Start starts the delivery worker
func (r *Relay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running || r.stopped {
		return
	}

	r.running = true
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		r.run()
	}()

	r.logger.Info("Relay started", "relay", r.name, "capacity", cap(r.queue))
}

// Stop delivers what is already queued, giving up after drainTimeout, and
// stops the worker. Messages enqueued afterwards are dropped.
func (r *Relay) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	running := r.running
	r.running = false
	r.mu.Unlock()

	// Enqueue must not wait on the drain, so mu is released first
	if !running {
		r.cancel()
		return
	}

	close(r.quit)
	timer := time.AfterFunc(drainTimeout, r.cancel)
	r.wg.Wait()
	timer.Stop()
	r.cancel()

	r.logger.Info("Relay stopped", "relay", r.name)
}

// Enqueue hands msg to the worker without blocking. It reports false when the
// message was dropped.
func (r *Relay) Enqueue(msg Message) bool {
	r.mu.Lock()
	stopped := r.stopped
	r.mu.Unlock()

	if stopped {
		r.logger.Warn("Relay stopped, dropping message", "relay", r.name, "key", msg.Key)
		return false
	}

	select {
	case r.queue <- msg:
		return true
	default:
		r.logger.Warn("Relay queue full, dropping message", "relay", r.name, "key", msg.Key)
		return false
	}
}

// Pending returns the number of queued messages
func (r *Relay) Pending() int {
	return len(r.queue)
}

func (r *Relay) run() {
	for {
		select {
		case msg := <-r.queue:
			r.deliver(r.ctx, msg)
		case <-r.quit:
			r.drain()
			return
		}
	}
}

func (r *Relay) drain() {
	for {
		select {
		case msg := <-r.queue:
			if r.ctx.Err() != nil {
				r.logger.Warn("Relay drain timed out", "relay", r.name, "dropped", len(r.queue)+1)
				return
			}
			r.deliver(r.ctx, msg)
		default:
			return
		}
	}
}
