package domain

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a new ULID-like identifier: a 10-character Crockford-Base32
// millisecond timestamp followed by 16 characters of randomness, lexicographically
// sortable. All store identifiers (job_id, source_id, issue_id, log_id,
// record_id) are generated this way, client-side, never by a store default.
// Guarded by a mutex: ulid.Monotonic's entropy source is not safe for
// concurrent use on its own.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
