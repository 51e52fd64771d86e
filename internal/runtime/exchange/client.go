package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stelliberty/enginectl/internal/runtime/envelope"
	runtimeerrors "github.com/stelliberty/enginectl/internal/runtime/errors"
	"github.com/stelliberty/enginectl/transport"
)

const tracerName = "github.com/stelliberty/enginectl/internal/runtime/exchange"

// DefaultTimeout bounds an exchange when the caller does not say
// otherwise. Engine round trips are local, so anything slower than this
// usually means the engine is gone, not busy.
const DefaultTimeout = 10 * time.Second

// Client runs the full exchange sequence against a publisher: register
// the pending exchange, send the command, await the response. Because
// registration precedes publishing, a response cannot slip through even
// if the engine answers before Publish returns.
type Client struct {
	reg     *Registry
	pub     message.Publisher
	timeout time.Duration
	tracer  trace.Tracer
}

// NewClient builds an exchange client. timeout <= 0 selects
// DefaultTimeout.
func NewClient(reg *Registry, pub message.Publisher, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		reg:     reg,
		pub:     pub,
		timeout: timeout,
		tracer:  otel.Tracer(tracerName),
	}
}

// Do sends one command and blocks until the expected event arrives, the
// exchange times out, or ctx is cancelled. The returned bytes are the raw
// response payload.
func (c *Client) Do(ctx context.Context, cmd envelope.Type, payload any, expected envelope.Type, opts ...Option) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "exchange.do", trace.WithAttributes(
		attribute.String("command", string(cmd)),
		attribute.String("expected", string(expected)),
	))
	defer span.End()

	env, err := envelope.New(cmd, payload)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	corrID, handle := c.reg.Register(expected, c.timeout, opts...)
	env.CorrelationID = corrID
	env.RequestID = applyOptions(opts).requestID
	span.SetAttributes(attribute.String("correlation_id", corrID))

	if err := c.pub.Publish(transport.TopicCommands, env.ToMessage()); err != nil {
		handle.Cancel()
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, runtimeerrors.ErrEngineUnavailable) {
			return nil, err
		}
		return nil, errors.Join(runtimeerrors.ErrEngineUnavailable, err)
	}

	resp, err := handle.Await(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return resp, nil
}

// Send publishes a command without expecting a paired response. Stream
// control and best-effort notifications go through here.
func (c *Client) Send(cmd envelope.Type, payload any) error {
	env, err := envelope.New(cmd, payload)
	if err != nil {
		return err
	}
	return c.pub.Publish(transport.TopicCommands, env.ToMessage())
}
