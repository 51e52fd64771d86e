// Package controller provides the transport that talks to a running
// engine process over its external-controller WebSocket socket. Outbound
// commands are written as JSON frames; inbound frames fan out through an
// in-memory pub/sub so every event subscriber receives every frame from
// the moment of subscribing onward.
//
// The connection is maintained by a background loop: while the engine
// process is away, Publish fails fast with ErrEngineUnavailable and the
// event stream simply produces nothing. Reconnection is this transport's
// job; callers never see a broken subscription.
package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gorilla/websocket"

	runtimeerrors "github.com/stelliberty/enginectl/internal/runtime/errors"
	"github.com/stelliberty/enginectl/internal/runtime/jsoncodec"
	"github.com/stelliberty/enginectl/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "controller"

const (
	writeTimeout   = 5 * time.Second
	reconnectDelay = 2 * time.Second
)

// Dialer allows overriding the WebSocket dial for testing.
var Dialer = func(ctx context.Context, url string, header http.Header) (*websocket.Conn, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return ws, err
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.ControllerCapabilities)
}

// Register re-registers this transport on the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.ControllerCapabilities)
}

// Build creates a controller transport and starts its connection loop.
// The returned transport is usable immediately; commands sent before the
// first successful dial fail with ErrEngineUnavailable.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	if cfg.GetControllerURL() == "" {
		return transport.Transport{}, runtimeerrors.NewConfigValidationError(
			runtimeerrors.ErrConfigRequired)
	}

	conn := &conn{
		url:    cfg.GetControllerURL(),
		secret: cfg.GetControllerSecret(),
		log:    logger,
		events: gochannel.NewGoChannel(gochannel.Config{}, logger),
		done:   make(chan struct{}),
	}
	go conn.run(ctx)

	return transport.Transport{
		Publisher:  conn,
		Subscriber: conn,
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.ControllerCapabilities
}

// frame is the wire format on the controller socket.
type frame struct {
	Type          string          `json:"type"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	RequestID     string          `json:"request_id,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

type conn struct {
	url    string
	secret string
	log    watermill.LoggerAdapter

	writeMu   sync.Mutex
	ws        *websocket.Conn
	connected atomic.Bool
	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once

	events *gochannel.GoChannel
}

// Publish writes command frames to the engine socket. It never blocks on
// the engine beyond the socket write deadline and fails fast while the
// process is unreachable.
func (c *conn) Publish(topic string, messages ...*message.Message) error {
	if topic != transport.TopicCommands {
		return fmt.Errorf("controller: cannot publish on topic %q", topic)
	}
	if !c.connected.Load() {
		return runtimeerrors.ErrEngineUnavailable
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	ws := c.ws
	if ws == nil {
		return runtimeerrors.ErrEngineUnavailable
	}

	for _, msg := range messages {
		f := frame{
			Type:          msg.Metadata[transport.MetadataType],
			CorrelationID: msg.Metadata[transport.MetadataCorrelationID],
			RequestID:     msg.Metadata[transport.MetadataRequestID],
			Payload:       json.RawMessage(msg.Payload),
		}
		data, err := jsoncodec.Marshal(f)
		if err != nil {
			return err
		}
		ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
			c.dropConnection(ws)
			return runtimeerrors.ErrEngineUnavailable
		}
	}
	return nil
}

// Subscribe attaches to the inbound event stream. No history is replayed.
func (c *conn) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return c.events.Subscribe(ctx, topic)
}

func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		c.writeMu.Lock()
		if c.ws != nil {
			c.ws.Close()
			c.ws = nil
		}
		c.writeMu.Unlock()
	})
	return c.events.Close()
}

// run dials the controller socket and pumps inbound frames into the event
// pub/sub, redialing after a short delay whenever the socket drops.
func (c *conn) run(ctx context.Context) {
	header := http.Header{}
	if c.secret != "" {
		header.Set("Authorization", "Bearer "+c.secret)
	}

	for {
		if c.closed.Load() {
			return
		}

		ws, err := Dialer(ctx, c.url, header)
		if err != nil {
			c.log.Debug("controller dial failed", watermill.LogFields{"url": c.url, "err": err})
			select {
			case <-time.After(reconnectDelay):
				continue
			case <-c.done:
				return
			case <-ctx.Done():
				return
			}
		}

		c.writeMu.Lock()
		c.ws = ws
		c.writeMu.Unlock()
		c.connected.Store(true)
		c.log.Info("controller connected", watermill.LogFields{"url": c.url})

		c.readLoop(ws)
		c.dropConnection(ws)

		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (c *conn) readLoop(ws *websocket.Conn) {
	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			c.log.Debug("controller read ended", watermill.LogFields{"err": err})
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		var f frame
		if err := jsoncodec.Unmarshal(data, &f); err != nil {
			// Malformed frames are dropped, never fatal.
			c.log.Error("controller frame decode failed", err, nil)
			continue
		}

		msg := message.NewMessage(watermill.NewUUID(), []byte(f.Payload))
		msg.Metadata[transport.MetadataType] = f.Type
		if f.CorrelationID != "" {
			msg.Metadata[transport.MetadataCorrelationID] = f.CorrelationID
		}
		if f.RequestID != "" {
			msg.Metadata[transport.MetadataRequestID] = f.RequestID
		}
		if err := c.events.Publish(transport.TopicEvents, msg); err != nil {
			c.log.Error("controller event fan-out failed", err, nil)
			return
		}
	}
}

func (c *conn) dropConnection(ws *websocket.Conn) {
	c.connected.Store(false)
	c.writeMu.Lock()
	if c.ws == ws {
		c.ws = nil
	}
	c.writeMu.Unlock()
	ws.Close()
}
