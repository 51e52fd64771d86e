// Package exchange implements the one-shot command/response correlation
// protocol on the engine channel. A Registry tracks pending exchanges
// keyed by correlation id; a single consumer goroutine resolves them as
// events arrive. The Client pairs the registry with the command publisher
// so that registration always happens before the command is sent; the
// subscribe-before-send ordering is structural, not timing-dependent.
package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/stelliberty/enginectl/internal/runtime/envelope"
	runtimeerrors "github.com/stelliberty/enginectl/internal/runtime/errors"
	"github.com/stelliberty/enginectl/internal/runtime/ids"
	"github.com/stelliberty/enginectl/internal/runtime/logging"
	"github.com/stelliberty/enginectl/transport"
)

// Option refines how an exchange matches its response.
type Option func(*exchangeOptions)

type exchangeOptions struct {
	requestID string
}

func applyOptions(opts []Option) exchangeOptions {
	var o exchangeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithRequestID narrows the match to events carrying the given
// application-level request id, for message types that are reused across
// logically distinct concurrent operations (batch downloads, parses).
// The id also travels on the outbound command so the engine can echo it.
func WithRequestID(id string) Option {
	return func(o *exchangeOptions) { o.requestID = id }
}

type pending struct {
	expected  envelope.Type
	requestID string
	timer     *time.Timer
	handle    *Handle
}

// Registry tracks pending exchanges. All bookkeeping is O(1) per event so
// it never gates delivery to the other consumers sharing the channel.
type Registry struct {
	log     logging.ServiceLogger
	metrics *Metrics

	mu      sync.Mutex
	pending map[string]*pending
}

// NewRegistry creates an exchange registry. metrics may be nil.
func NewRegistry(log logging.ServiceLogger, metrics *Metrics) *Registry {
	if log == nil {
		log = logging.Nop()
	}
	return &Registry{
		log:     log,
		metrics: metrics,
		pending: make(map[string]*pending),
	}
}

// Register allocates a fresh correlation id and a pending exchange
// expecting one event of the given type within timeout. The exchange is
// matchable the moment Register returns, so callers can safely send the
// command afterwards: even an engine that replies synchronously cannot
// win the race.
func (r *Registry) Register(expected envelope.Type, timeout time.Duration, opts ...Option) (string, *Handle) {
	corrID := ids.NewCorrelationID()
	h := newHandle()
	o := applyOptions(opts)
	p := &pending{expected: expected, requestID: o.requestID, handle: h}

	h.cancel = func() { r.remove(corrID, runtimeerrors.ErrCancelled) }

	// The timer is armed inside the critical section, before the entry
	// becomes matchable: the timeout callback takes the same lock, so it
	// can never observe a pending entry whose timer is still unset.
	r.mu.Lock()
	p.timer = time.AfterFunc(timeout, func() {
		r.remove(corrID, runtimeerrors.ErrTimeout)
	})
	r.pending[corrID] = p
	r.mu.Unlock()
	r.metrics.registered()

	return corrID, h
}

// Run consumes the inbound event stream and resolves pending exchanges.
// It is the single logical consumer of the registry; telemetry feeds hold
// their own channel subscriptions. Run returns when ctx is cancelled or
// the subscription closes.
func (r *Registry) Run(ctx context.Context, sub message.Subscriber) error {
	events, err := sub.Subscribe(ctx, transport.TopicEvents)
	if err != nil {
		return err
	}

	for msg := range events {
		r.Resolve(envelope.FromMessage(msg))
		msg.Ack()
	}
	return ctx.Err()
}

// Resolve matches one inbound event against the pending table. Events
// with no match, an unexpected type, or a non-matching request id are
// dropped in O(1); they may belong to a telemetry feed or to an exchange
// that already timed out.
func (r *Registry) Resolve(env envelope.Envelope) {
	if env.CorrelationID == "" {
		return
	}

	r.mu.Lock()
	p, ok := r.pending[env.CorrelationID]
	if !ok || p.expected != env.Type || (p.requestID != "" && p.requestID != env.RequestID) {
		r.mu.Unlock()
		if ok {
			r.log.Trace("event did not satisfy pending exchange", logging.LogFields{
				"correlation_id": env.CorrelationID,
				"event_type":     string(env.Type),
			})
		}
		return
	}
	delete(r.pending, env.CorrelationID)
	r.mu.Unlock()

	p.timer.Stop()
	p.handle.complete(env.Payload, nil)
	r.metrics.resolved()
}

// remove deletes a pending exchange and completes its handle with err.
// Shared by timeout and cancellation; losing the race against Resolve is
// fine because the handle completes at most once.
func (r *Registry) remove(corrID string, err error) {
	r.mu.Lock()
	p, ok := r.pending[corrID]
	if ok {
		delete(r.pending, corrID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	p.timer.Stop()
	p.handle.complete(nil, err)
	r.metrics.failed(err)
}

// PendingCount reports how many exchanges are currently outstanding.
func (r *Registry) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
