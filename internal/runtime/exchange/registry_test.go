package exchange

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stelliberty/enginectl/internal/runtime/envelope"
	runtimeerrors "github.com/stelliberty/enginectl/internal/runtime/errors"
	"github.com/stelliberty/enginectl/internal/runtime/logging"
	"github.com/stelliberty/enginectl/transport"
)

func testRegistry() *Registry {
	return NewRegistry(logging.Nop(), nil)
}

func TestResolveCompletesMatchingExchange(t *testing.T) {
	reg := testRegistry()
	corrID, handle := reg.Register(envelope.EvtVersion, time.Second)

	reg.Resolve(envelope.Envelope{
		Type:          envelope.EvtVersion,
		CorrelationID: corrID,
		Payload:       []byte(`{"version":"1.18.0"}`),
	})

	payload, err := handle.Await(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"1.18.0"}`, string(payload))
	assert.Zero(t, reg.PendingCount())
}

func TestNoCrossTalkBetweenConcurrentExchanges(t *testing.T) {
	reg := testRegistry()
	corrA, handleA := reg.Register(envelope.EvtProcessResult, time.Second)
	corrB, handleB := reg.Register(envelope.EvtProcessResult, time.Second)
	require.NotEqual(t, corrA, corrB)

	reg.Resolve(envelope.Envelope{
		Type:          envelope.EvtProcessResult,
		CorrelationID: corrB,
		Payload:       []byte(`{"is_successful":true,"pid":42}`),
	})

	select {
	case <-handleA.Done():
		t.Fatal("sibling response leaked into the wrong exchange")
	case <-handleB.Done():
	}

	payload, err := handleB.Await(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"pid":42`)
	assert.Equal(t, 1, reg.PendingCount())
	handleA.Cancel()
}

func TestResolveDropsUnexpectedType(t *testing.T) {
	reg := testRegistry()
	corrID, handle := reg.Register(envelope.EvtDownloadResult, time.Second)

	reg.Resolve(envelope.Envelope{Type: envelope.EvtVersion, CorrelationID: corrID})

	select {
	case <-handle.Done():
		t.Fatal("mismatched event type must not resolve the exchange")
	default:
	}
	assert.Equal(t, 1, reg.PendingCount())
	handle.Cancel()
}

func TestResolveIgnoresUnknownCorrelationID(t *testing.T) {
	reg := testRegistry()
	_, handle := reg.Register(envelope.EvtVersion, time.Second)
	defer handle.Cancel()

	reg.Resolve(envelope.Envelope{Type: envelope.EvtVersion, CorrelationID: "never-registered"})
	reg.Resolve(envelope.Envelope{Type: envelope.EvtVersion})

	assert.Equal(t, 1, reg.PendingCount())
}

func TestRequestIDRefinement(t *testing.T) {
	reg := testRegistry()
	corrID, handle := reg.Register(envelope.EvtDownloadResult, time.Second, WithRequestID("req-1"))

	reg.Resolve(envelope.Envelope{
		Type:          envelope.EvtDownloadResult,
		CorrelationID: corrID,
		RequestID:     "req-2",
	})
	select {
	case <-handle.Done():
		t.Fatal("response for a different request id must be dropped")
	default:
	}

	reg.Resolve(envelope.Envelope{
		Type:          envelope.EvtDownloadResult,
		CorrelationID: corrID,
		RequestID:     "req-1",
		Payload:       []byte(`{"request_id":"req-1","is_successful":true}`),
	})

	payload, err := handle.Await(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"req-1"`)
}

func TestRegisterWithImmediateTimeouts(t *testing.T) {
	// A near-zero deadline fires the timeout callback while Register is
	// still on the stack; every exchange must still complete exactly once
	// and the pending table must drain.
	reg := testRegistry()

	const n = 2000
	handles := make([]*Handle, 0, n)
	for i := 0; i < n; i++ {
		_, h := reg.Register(envelope.EvtVersion, time.Nanosecond)
		handles = append(handles, h)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, h := range handles {
		_, err := h.Await(ctx)
		require.ErrorIs(t, err, runtimeerrors.ErrTimeout)
	}
	assert.Zero(t, reg.PendingCount())
}

func TestTimeoutFailsOnlyTheExpiredExchange(t *testing.T) {
	reg := testRegistry()
	_, fast := reg.Register(envelope.EvtVersion, 20*time.Millisecond)
	corrSlow, slow := reg.Register(envelope.EvtVersion, 5*time.Second)

	_, err := fast.Await(context.Background())
	assert.ErrorIs(t, err, runtimeerrors.ErrTimeout)

	// The sibling with its own deadline must still be resolvable.
	reg.Resolve(envelope.Envelope{
		Type:          envelope.EvtVersion,
		CorrelationID: corrSlow,
		Payload:       []byte(`{"version":"1.18.0"}`),
	})
	payload, err := slow.Await(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(payload), "1.18.0")
}

func TestResolutionIsExactlyOnce(t *testing.T) {
	reg := testRegistry()
	corrID, handle := reg.Register(envelope.EvtVersion, 30*time.Millisecond)

	reg.Resolve(envelope.Envelope{
		Type:          envelope.EvtVersion,
		CorrelationID: corrID,
		Payload:       []byte(`{"version":"first"}`),
	})
	handle.Cancel()
	time.Sleep(60 * time.Millisecond) // let the timer fire into the void

	payload, err := handle.Await(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(payload), "first")
}

func TestAwaitContextCancellationAbandonsExchange(t *testing.T) {
	reg := testRegistry()
	_, handle := reg.Register(envelope.EvtProcessResult, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	var awaitErr error
	go func() {
		defer wg.Done()
		_, awaitErr = handle.Await(ctx)
	}()

	cancel()
	wg.Wait()
	assert.ErrorIs(t, awaitErr, runtimeerrors.ErrCancelled)
	assert.Zero(t, reg.PendingCount())
}

func TestRunResolvesFromSubscription(t *testing.T) {
	reg := testRegistry()
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubsub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = reg.Run(ctx, pubsub) }()
	time.Sleep(20 * time.Millisecond) // let Run subscribe

	corrID, handle := reg.Register(envelope.EvtVersion, 2*time.Second)
	env := envelope.Envelope{
		Type:          envelope.EvtVersion,
		CorrelationID: corrID,
		Payload:       []byte(`{"version":"1.18.0"}`),
	}
	require.NoError(t, pubsub.Publish(transport.TopicEvents, env.ToMessage()))

	payload, err := handle.Await(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(payload), "1.18.0")
}
