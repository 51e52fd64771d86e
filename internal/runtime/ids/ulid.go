// Package ids allocates the two identifier kinds used on the engine
// channel: ULID correlation ids pairing a command with its eventual
// response, and UUID request ids embedded in payloads when one message
// type is reused across concurrent logical operations.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewCorrelationID returns a time-sortable ULID encoded as a 26-character
// string. Monotonic entropy keeps ids allocated in the same millisecond
// ordered, so the pending-exchange table never sees a duplicate key.
func NewCorrelationID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return id.String()
}

// NewRequestID returns a random UUID string for application-level
// request/response pairing inside payloads.
func NewRequestID() string {
	return uuid.NewString()
}
