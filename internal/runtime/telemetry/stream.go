package telemetry

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/stelliberty/enginectl/internal/runtime/envelope"
	"github.com/stelliberty/enginectl/internal/runtime/jsoncodec"
	"github.com/stelliberty/enginectl/internal/runtime/logging"
	"github.com/stelliberty/enginectl/transport"
)

// broadcastBuffer bounds the outward sample channel. Feeds tick a few
// times per second at most; a consumer that falls this far behind loses
// samples rather than stalling channel consumption.
const broadcastBuffer = 64

// CommandSender sends a fire-and-forget command to the engine.
// *exchange.Client satisfies it.
type CommandSender interface {
	Send(cmd envelope.Type, payload any) error
}

// Feed describes one telemetry stream: which event type carries its
// samples, how to decode them, and whether its outward broadcast outlives
// a stop. Traffic samples feed long-lived observers (running averages) so
// their broadcast is retained; the engine log only serves the live
// session and is torn down with it.
type Feed struct {
	Name            string
	Event           envelope.Type
	Leveled         bool
	RetainBroadcast bool
	Decode          func(payload []byte) (any, error)
}

// TrafficFeed carries transfer-rate samples.
var TrafficFeed = Feed{
	Name:            "traffic",
	Event:           envelope.EvtTrafficSample,
	RetainBroadcast: true,
	Decode: func(payload []byte) (any, error) {
		var s envelope.TrafficSample
		err := jsoncodec.Unmarshal(payload, &s)
		return s, err
	},
}

// LogFeed carries engine log lines, filtered server-side by level.
var LogFeed = Feed{
	Name:    "logs",
	Event:   envelope.EvtLogSample,
	Leveled: true,
	Decode: func(payload []byte) (any, error) {
		var s envelope.LogSample
		err := jsoncodec.Unmarshal(payload, &s)
		return s, err
	},
}

// LevelSource reads the configured severity for a stream, typically out
// of the catalog.
type LevelSource func() Level

// Stream is the Idle/Monitoring state machine for one feed.
type Stream struct {
	feed   Feed
	sender CommandSender
	sub    message.Subscriber
	levels LevelSource
	log    logging.ServiceLogger

	mu     sync.Mutex
	active bool
	level  Level
	cancel context.CancelFunc
	done   chan struct{}
	out    chan any
}

// NewStream builds an idle stream. levels may be nil for feeds without
// severity filtering.
func NewStream(feed Feed, sender CommandSender, sub message.Subscriber, levels LevelSource, log logging.ServiceLogger) *Stream {
	if log == nil {
		log = logging.Nop()
	}
	if levels == nil {
		levels = func() Level { return LevelInfo }
	}
	return &Stream{
		feed:   feed,
		sender: sender,
		sub:    sub,
		levels: levels,
		log:    log.With(logging.LogFields{"feed": feed.Name}),
	}
}

// Start transitions Idle -> Monitoring. Already-monitoring streams and
// streams configured Silent are no-ops; a Silent stream never subscribes.
func (s *Stream) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return nil
	}
	level := s.levels()
	if level.Silent() {
		s.log.Debug("stream stays idle at silent level", nil)
		return nil
	}

	// The subscription's lifetime belongs to the stream, not to whoever
	// happened to call Start: only Stop (or a silent level) ends it.
	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	samples, err := s.sub.Subscribe(subCtx, transport.TopicEvents)
	if err != nil {
		cancel()
		return err
	}

	ctrl := envelope.StreamControl{Feed: s.feed.Name}
	if s.feed.Leveled {
		ctrl.Level = string(level)
	}
	if err := s.sender.Send(envelope.CmdBeginStream, ctrl); err != nil {
		cancel()
		return err
	}

	if s.out == nil {
		s.out = make(chan any, broadcastBuffer)
	}
	s.active = true
	s.level = level
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.consume(samples, s.out, s.done)
	s.log.Info("stream started", logging.LogFields{"level": string(level)})
	return nil
}

// Stop transitions Monitoring -> Idle. The end-stream command is best
// effort; the local subscription is always cancelled.
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil
	}
	if err := s.sender.Send(envelope.CmdEndStream, envelope.StreamControl{Feed: s.feed.Name}); err != nil {
		s.log.Error("end-stream command failed", err, nil)
	}
	s.cancel()
	s.cancel = nil
	s.active = false
	if !s.feed.RetainBroadcast {
		// Wait for the consumer goroutine before tearing down the
		// broadcast so it never sends on a closed channel.
		<-s.done
		close(s.out)
		s.out = nil
	}
	s.log.Info("stream stopped", nil)
	return nil
}

// UpdateLevel reacts to a configuration change. Non-silent to non-silent
// is a hot update with no restart: the engine filters server-side.
// Crossing the silent boundary activates or deactivates the stream.
func (s *Stream) UpdateLevel(ctx context.Context, next Level) error {
	s.mu.Lock()
	old := s.level
	if !s.active {
		old = LevelSilent
	}
	s.mu.Unlock()

	switch {
	case old.Silent() && !next.Silent():
		return s.Start(ctx)
	case !old.Silent() && next.Silent():
		return s.Stop()
	case old.Silent() && next.Silent():
		return nil
	default:
		s.mu.Lock()
		s.level = next
		s.mu.Unlock()
		ctrl := envelope.StreamControl{Feed: s.feed.Name}
		if s.feed.Leveled {
			ctrl.Level = string(next)
		}
		return s.sender.Send(envelope.CmdBeginStream, ctrl)
	}
}

// Active reports whether the stream is Monitoring.
func (s *Stream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Samples exposes the outward broadcast. For retained feeds the same
// channel spans stop/start cycles; for torn-down feeds it is nil while
// Idle.
func (s *Stream) Samples() <-chan any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out
}

// consume filters the shared event stream down to this feed and decodes
// samples onto out. Decode failures are dropped, never fatal.
func (s *Stream) consume(msgs <-chan *message.Message, out chan<- any, done chan<- struct{}) {
	defer close(done)
	for msg := range msgs {
		env := envelope.FromMessage(msg)
		msg.Ack()
		if env.Type != s.feed.Event {
			continue
		}
		sample, err := s.feed.Decode(env.Payload)
		if err != nil {
			s.log.Error("telemetry sample dropped", err, nil)
			continue
		}
		select {
		case out <- sample:
		default:
			s.log.Trace("slow consumer, sample dropped", nil)
		}
	}
}
