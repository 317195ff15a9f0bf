package quota

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Guard errors
var (
	ErrStoreUnavailable = errors.New("usage store unavailable")
)

// Decision is the outcome of a quota check
type Decision int

const (
	// Allowed means the request may proceed and its use has been counted
	Allowed Decision = iota
	// Denied means the daily free-tier limit is already exhausted
	Denied
)

// DeviceKey derives a stable per-device key from a client-supplied
// device identifier and the observed source address. Tying the key to
// the network origin resists device-identifier-only forgery without
// requiring any persistent session state.
func DeviceKey(deviceID, sourceAddr string) string {
	sum := sha256.Sum256([]byte(deviceID + sourceAddr))
	return hex.EncodeToString(sum[:])
}

// Store is a daily usage counter keyed by device key. Consume performs
// an atomic check-and-increment against today's bucket (UTC): if the
// count is already at or above limit it reports allowed=false and must
// not mutate the count. The count for a new calendar day always starts
// at zero regardless of the previous day's value.
type Store interface {
	Consume(ctx context.Context, deviceKey string, limit int) (allowed bool, count int, err error)
}

// Guard enforces the daily free-usage ceiling per device
type Guard struct {
	store Store
	limit int
}

// NewGuard creates a new quota guard
func NewGuard(store Store, dailyLimit int) *Guard {
	return &Guard{
		store: store,
		limit: dailyLimit,
	}
}

// Limit returns the configured daily free-tier limit
func (g *Guard) Limit() int {
	return g.limit
}

// CheckAndConsume checks the daily quota for a device key and, if the
// request is allowed, counts it. Premium requests bypass the guard
// entirely: no read, no write, no cap. The returned count is the
// device key's usage for today after the check.
func (g *Guard) CheckAndConsume(ctx context.Context, deviceKey string, premium bool) (Decision, int, error) {
	if premium {
		return Allowed, 0, nil
	}

	allowed, count, err := g.store.Consume(ctx, deviceKey, g.limit)
	if err != nil {
		return Denied, 0, err
	}
	if !allowed {
		return Denied, count, nil
	}
	return Allowed, count, nil
}
