package mail

import (
	"context"
	"sync"
	"time"

	log "github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mailDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cornerwise_mail_delivered_total",
		Help: "Messages handed to the deliverer, by kind",
	}, []string{"kind"})
	mailFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cornerwise_mail_failed_total",
		Help: "Messages the deliverer rejected, by kind",
	}, []string{"kind"})
)

// ErrDispatcherClosed is returned by Send after Close
var ErrDispatcherClosed = errors.New("dispatcher closed")

const deliverTimeout = 30 * time.Second

// Dispatcher delivers messages in the background. Send never waits for
// delivery; failures are logged and counted.
type Dispatcher struct {
	deliverer Deliverer
	queue     chan Message
	wg        sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher creates a dispatcher with a queue of size buffer
func NewDispatcher(d Deliverer, buffer int) *Dispatcher {
	return &Dispatcher{
		deliverer: d,
		queue:     make(chan Message, buffer),
	}
}

// Start launches the worker goroutines
func (d *Dispatcher) Start(workers int) {
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for msg := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		err := d.deliverer.Deliver(ctx, msg)
		cancel()
		if err != nil {
			log.Errorf("Failed to deliver %s mail %s to %s: %v", msg.Kind, msg.ID, msg.To, err)
			mailFailed.WithLabelValues(msg.Kind).Inc()
			continue
		}
		mailDelivered.WithLabelValues(msg.Kind).Inc()
	}
}

// Send queues msg. It blocks only while the queue is full or until ctx is done.
func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting messages and waits for queued ones to be delivered
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
