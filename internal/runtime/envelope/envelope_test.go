package envelope

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	runtimeerrors "github.com/stelliberty/enginectl/internal/runtime/errors"
	"github.com/stelliberty/enginectl/transport"
)

func TestRoundTrip(t *testing.T) {
	env, err := New(CmdDownload, DownloadRequest{
		RequestID: "req-7",
		URL:       "https://example.com/sub",
		ProxyMode: "direct",
	})
	require.NoError(t, err)
	env.CorrelationID = "corr-1"
	env.RequestID = "req-7"

	msg := env.ToMessage()
	assert.Equal(t, string(CmdDownload), msg.Metadata[transport.MetadataType])
	assert.Equal(t, "corr-1", msg.Metadata[transport.MetadataCorrelationID])
	assert.Equal(t, "req-7", msg.Metadata[transport.MetadataRequestID])

	back := FromMessage(msg)
	assert.Equal(t, CmdDownload, back.Type)
	assert.Equal(t, "corr-1", back.CorrelationID)
	assert.Equal(t, "req-7", back.RequestID)

	var req DownloadRequest
	require.NoError(t, back.Decode(&req))
	assert.Equal(t, "https://example.com/sub", req.URL)
}

func TestNewRejectsEmptyType(t *testing.T) {
	_, err := New("", nil)
	assert.ErrorIs(t, err, runtimeerrors.ErrTypeRequired)
}

func TestFromMessageFallsBackToPayloadRequestID(t *testing.T) {
	msg := message.NewMessage(watermill.NewUUID(), []byte(`{"request_id":"embedded","is_successful":true}`))
	msg.Metadata[transport.MetadataType] = string(EvtDownloadResult)

	env := FromMessage(msg)
	assert.Equal(t, "embedded", env.RequestID)
}

func TestFromMessageMetadataWinsOverPayload(t *testing.T) {
	msg := message.NewMessage(watermill.NewUUID(), []byte(`{"request_id":"embedded"}`))
	msg.Metadata[transport.MetadataType] = string(EvtParseResult)
	msg.Metadata[transport.MetadataRequestID] = "meta"

	env := FromMessage(msg)
	assert.Equal(t, "meta", env.RequestID)
}

func TestKnownEvent(t *testing.T) {
	for _, evt := range []Type{
		EvtProcessResult, EvtVersion, EvtLogSample, EvtTrafficSample,
		EvtDownloadResult, EvtParseResult, EvtOverridesResult,
	} {
		assert.True(t, KnownEvent(evt), string(evt))
	}

	assert.False(t, KnownEvent(Type("future.event")), "unknown types must be ignorable, not members")
	assert.False(t, KnownEvent(CmdStartEngine), "commands are not events")
}
