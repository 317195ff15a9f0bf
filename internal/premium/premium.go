package premium

import (
	"time"
)

// Entitlement is the time-bounded premium status granted by a
// successful code verification. The server does not persist it;
// enforcement is delegated entirely to the client.
type Entitlement struct {
	Expiry time.Time `json:"expiry"`
}

// Verifier checks submitted codes against a static allow-list sourced
// from configuration. Verification is idempotent and side-effect-free:
// codes are intentionally shareable and are never marked as consumed.
type Verifier struct {
	codes  map[string]struct{}
	window time.Duration
	now    func() time.Time
}

// NewVerifier creates a verifier from the configured code list
func NewVerifier(codes []string, entitlementDays int) *Verifier {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		if c != "" {
			set[c] = struct{}{}
		}
	}
	return &Verifier{
		codes:  set,
		window: time.Duration(entitlementDays) * 24 * time.Hour,
		now:    time.Now,
	}
}

// SetClock overrides the verifier's clock for tests
func (v *Verifier) SetClock(now func() time.Time) {
	v.now = now
}

// Verify fails closed: an empty code, or any code not present in the
// allow-list by exact string match, yields no entitlement. A match
// yields a freshly computed 30-day window.
func (v *Verifier) Verify(code string) (*Entitlement, bool) {
	if code == "" {
		return nil, false
	}
	if _, ok := v.codes[code]; !ok {
		return nil, false
	}
	return &Entitlement{Expiry: v.now().Add(v.window)}, true
}
