package session

import "time"

// DefaultRenewMargin is the remaining lifetime below which a token is renewed.
const DefaultRenewMargin = time.Hour

type State int

const (
	NoToken State = iota
	Valid
	NearExpiry
	Expired
)

func (s State) String() string {
	switch s {
	case NoToken:
		return "no-token"
	case Valid:
		return "valid"
	case NearExpiry:
		return "near-expiry"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// NeedsRenewal reports whether a token in this state must be replaced before use.
func (s State) NeedsRenewal() bool { return s != Valid }

// Classify places tok on the lifecycle using only its expiry.
// A token without an expiry is treated as expired.
func Classify(tok AuthToken, now time.Time, margin time.Duration) State {
	if tok.Empty() {
		return NoToken
	}
	if tok.ExpiresAt.IsZero() || !now.Before(tok.ExpiresAt) {
		return Expired
	}
	if tok.ExpiresAt.Sub(now) < margin {
		return NearExpiry
	}
	return Valid
}
