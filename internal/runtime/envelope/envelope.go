// Package envelope defines the closed, versionable sets of command and
// event types exchanged with the engine process, and the conversion
// between envelopes and channel messages. Payload encodings are opaque to
// the channel; only type, correlation id, and request id are contractual.
package envelope

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	runtimeerrors "github.com/stelliberty/enginectl/internal/runtime/errors"
	"github.com/stelliberty/enginectl/internal/runtime/jsoncodec"
	"github.com/stelliberty/enginectl/transport"
)

// Type tags a message on the engine channel. The sets below are closed
// per protocol version; unknown inbound types must be ignored, not fatal.
type Type string

// Commands (outbound).
const (
	CmdStartEngine    Type = "engine.start"
	CmdStopEngine     Type = "engine.stop"
	CmdQueryVersion   Type = "engine.version.query"
	CmdBeginStream    Type = "stream.begin"
	CmdEndStream      Type = "stream.end"
	CmdDownload       Type = "resource.download"
	CmdParse          Type = "resource.parse"
	CmdApplyOverrides Type = "overrides.apply"
)

// Events (inbound).
const (
	EvtProcessResult   Type = "engine.process_result"
	EvtVersion         Type = "engine.version"
	EvtLogSample       Type = "telemetry.log"
	EvtTrafficSample   Type = "telemetry.traffic"
	EvtDownloadResult  Type = "resource.download_result"
	EvtParseResult     Type = "resource.parse_result"
	EvtOverridesResult Type = "overrides.result"
)

var knownEvents = map[Type]struct{}{
	EvtProcessResult:   {},
	EvtVersion:         {},
	EvtLogSample:       {},
	EvtTrafficSample:   {},
	EvtDownloadResult:  {},
	EvtParseResult:     {},
	EvtOverridesResult: {},
}

// KnownEvent reports whether t belongs to the closed event set of this
// protocol version.
func KnownEvent(t Type) bool {
	_, ok := knownEvents[t]
	return ok
}

// Envelope is one message on the engine channel: a typed payload plus the
// identifiers used to pair commands with their eventual responses.
type Envelope struct {
	Type          Type
	CorrelationID string
	RequestID     string
	Payload       []byte
}

// New builds an envelope with a marshalled payload. An untyped message
// could never be matched on the channel, so the type is mandatory.
func New(t Type, payload any) (Envelope, error) {
	if t == "" {
		return Envelope{}, runtimeerrors.ErrTypeRequired
	}
	data, err := jsoncodec.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: t, Payload: data}, nil
}

// ToMessage converts the envelope into a channel message.
func (e Envelope) ToMessage() *message.Message {
	msg := message.NewMessage(watermill.NewUUID(), e.Payload)
	msg.Metadata[transport.MetadataType] = string(e.Type)
	if e.CorrelationID != "" {
		msg.Metadata[transport.MetadataCorrelationID] = e.CorrelationID
	}
	if e.RequestID != "" {
		msg.Metadata[transport.MetadataRequestID] = e.RequestID
	}
	return msg
}

// FromMessage reads an envelope back out of a channel message. The
// request id may live either in the metadata or embedded in the payload;
// the metadata wins when both are present.
func FromMessage(msg *message.Message) Envelope {
	env := Envelope{
		Type:          Type(msg.Metadata[transport.MetadataType]),
		CorrelationID: msg.Metadata[transport.MetadataCorrelationID],
		RequestID:     msg.Metadata[transport.MetadataRequestID],
		Payload:       msg.Payload,
	}
	if env.RequestID == "" && len(env.Payload) > 0 {
		env.RequestID = jsoncodec.PeekString(env.Payload, "request_id")
	}
	return env
}

// Decode unmarshals the envelope payload into v.
func (e Envelope) Decode(v any) error {
	return jsoncodec.Unmarshal(e.Payload, v)
}
