package exchange

import (
	"context"
	"sync"

	runtimeerrors "github.com/stelliberty/enginectl/internal/runtime/errors"
)

// Handle is the caller's side of a pending exchange. Exactly one of
// resolution, timeout, or cancellation completes it; the registry owns
// the exchange itself, the caller only awaits.
type Handle struct {
	done    chan struct{}
	once    sync.Once
	payload []byte
	err     error

	// cancel removes the exchange from the registry. Installed at
	// registration time.
	cancel func()
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// complete records the outcome. Later calls are no-ops, which is what
// makes "exactly one of resolved/timed-out/cancelled" hold.
func (h *Handle) complete(payload []byte, err error) {
	h.once.Do(func() {
		h.payload = payload
		h.err = err
		close(h.done)
	})
}

// Await blocks until the exchange completes or ctx is done. Context
// cancellation cancels the exchange locally; the engine is not notified.
func (h *Handle) Await(ctx context.Context) ([]byte, error) {
	select {
	case <-h.done:
		return h.payload, h.err
	case <-ctx.Done():
		if h.cancel != nil {
			h.cancel()
		}
		h.complete(nil, runtimeerrors.ErrCancelled)
		<-h.done
		return h.payload, h.err
	}
}

// Cancel abandons the exchange. Safe to call at any time, from any
// goroutine, and after completion.
func (h *Handle) Cancel() {
	if h.cancel != nil {
		h.cancel()
	}
	h.complete(nil, runtimeerrors.ErrCancelled)
}

// Done exposes completion for select loops.
func (h *Handle) Done() <-chan struct{} { return h.done }
