// Package experiment implements the experiment registry, its lifecycle
// state machine, and deterministic variant assignment.
package experiment

import (
	"github.com/google/uuid"
	"github.com/landerd/landerd/internal/store"
)

// SessionCookie is the name of the affinity cookie. Its value is an
// opaque token minted on first contact and reused for 24 hours.
const SessionCookie = "ab_session"

// SessionTTLSeconds is the cookie lifetime.
const SessionTTLSeconds = 24 * 60 * 60

// NewSessionToken mints an opaque session token.
func NewSessionToken() string {
	return "ab_" + uuid.NewString()
}

// BucketHash computes the rolling string hash used for assignment:
// h = (h<<5) - h + ch over the input with 32-bit signed wraparound,
// identical for a given (session, experiment) pair for as long as the
// experiment runs.
func BucketHash(s string) int32 {
	var h int32
	for _, ch := range s {
		h = (h << 5) - h + int32(ch)
	}
	return h
}

// Bucket maps a session/experiment pair to a bucket in [0,100).
func Bucket(sessionID, experimentID string) int {
	h := int64(BucketHash(sessionID + experimentID))
	if h < 0 {
		h = -h
	}
	return int(h % 100)
}

// PickVariant walks variants in declaration order accumulating weights
// and returns the first whose cumulative weight exceeds the bucket. When
// rounding leaves the bucket uncovered it falls back to the first
// variant. Given weights summing to 100 every bucket in [0,100) maps to
// exactly one variant.
func PickVariant(variants []store.Variant, bucket int) *store.Variant {
	if len(variants) == 0 {
		return nil
	}
	cumulative := 0.0
	for i := range variants {
		cumulative += variants[i].Weight
		if float64(bucket) < cumulative {
			return &variants[i]
		}
	}
	return &variants[0]
}

// Assign deterministically selects a variant for the session. Repeated
// calls with the same (session, experiment) pair return the same variant.
func Assign(e *store.Experiment, sessionID string) *store.Variant {
	return PickVariant(e.Variants, Bucket(sessionID, e.ID))
}
