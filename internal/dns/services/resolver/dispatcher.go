package resolver

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/caprine/goatd/internal/dns/common/log"
	"github.com/caprine/goatd/internal/dns/common/metrics"
	"github.com/caprine/goatd/internal/dns/domain"
)

const (
	// DefaultMaxInFlight bounds how many queries may be queued or being
	// worked on at once. Past it, new work is dropped, not queued.
	DefaultMaxInFlight = 512

	// DefaultReplyTimeout is how long a query may wait for its answer
	// before the submitter gives up on it.
	DefaultReplyTimeout = 1 * time.Second
)

var (
	// ErrQueueFull means the dispatcher is at MaxInFlight and the unit
	// was dropped without blocking the listener.
	ErrQueueFull = errors.New("dispatch queue full")

	// ErrTimedOut means no worker produced an answer within the reply
	// timeout; any late result is discarded.
	ErrTimedOut = errors.New("query timed out in dispatch")
)

// unit is one query in flight: the question, where it came from, and the
// channel its answer travels back on. Every unit gets its own reply
// channel so answers can never cross between clients.
type unit struct {
	ctx    context.Context
	q      domain.Question
	client net.Addr
	reply  chan domain.DNSResponse
}

// Dispatcher pushes decoded queries through a bounded queue to a worker
// pool. Listeners call Submit and never block on slow resolution; a full
// queue sheds load at the edge instead of stacking goroutines.
type Dispatcher struct {
	responder DNSResponder
	logger    log.Logger
	queue     chan unit
	workers   int
	timeout   time.Duration
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

type DispatcherOptions struct {
	Responder DNSResponder
	Logger    log.Logger

	// MaxInFlight caps the queue; zero means DefaultMaxInFlight.
	MaxInFlight int
	// Workers is the pool size; zero means 4.
	Workers int
	// ReplyTimeout is the per-query deadline; zero means
	// DefaultReplyTimeout.
	ReplyTimeout time.Duration
}

func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = DefaultMaxInFlight
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.ReplyTimeout <= 0 {
		opts.ReplyTimeout = DefaultReplyTimeout
	}
	return &Dispatcher{
		responder: opts.Responder,
		logger:    opts.Logger,
		queue:     make(chan unit, opts.MaxInFlight),
		workers:   opts.Workers,
		timeout:   opts.ReplyTimeout,
	}
}

// Start launches the worker pool. Workers run until Stop.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
}

// Stop closes the queue and waits for workers to drain it. Submit must
// not be called after Stop.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
}

// Submit enqueues one query and waits for its answer. It returns
// ErrQueueFull immediately when the dispatcher is saturated and
// ErrTimedOut when no answer arrives within the reply timeout.
func (d *Dispatcher) Submit(ctx context.Context, q domain.Question, client net.Addr) (domain.DNSResponse, error) {
	uctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	u := unit{
		ctx:    uctx,
		q:      q,
		client: client,
		reply:  make(chan domain.DNSResponse, 1),
	}

	select {
	case d.queue <- u:
	default:
		metrics.DroppedTotal.WithLabelValues("queue_full").Inc()
		d.logger.Warn(map[string]any{
			"name":   q.Name,
			"client": addrString(client),
		}, "Dispatch queue full, dropping query")
		return domain.DNSResponse{}, ErrQueueFull
	}

	select {
	case resp := <-u.reply:
		return resp, nil
	case <-uctx.Done():
		metrics.DroppedTotal.WithLabelValues("timeout").Inc()
		return domain.DNSResponse{}, ErrTimedOut
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for u := range d.queue {
		// A unit that already expired in the queue is abandoned; its
		// submitter has stopped listening.
		if u.ctx.Err() != nil {
			continue
		}
		resp := d.responder.HandleRequest(u.ctx, u.q, u.client)
		// The reply channel is buffered, so a submitter that timed out
		// between HandleRequest and here costs nothing.
		u.reply <- resp
	}
}
