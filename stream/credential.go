package stream

import (
	"fmt"
	"time"
)

// Credential is an access token with an expiry, as stored by whichever
// component persists authorization state.
type Credential struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
}

func (c Credential) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && !now.Before(c.Expiry)
}

// RefreshFunc exchanges an expired credential for a fresh one.
type RefreshFunc func(Credential) (Credential, error)

// EnsureFreshCredential returns a usable credential. When the stored one is
// still fresh it is returned as-is with a nil update. When it has expired
// the refresh function is invoked and the refreshed credential is returned
// twice: once to use, once for the caller to persist. Refresh stays an
// explicit, visible side effect instead of hiding inside a getter.
func EnsureFreshCredential(stored Credential, now time.Time, refresh RefreshFunc) (Credential, *Credential, error) {
	if !stored.Expired(now) {
		return stored, nil, nil
	}
	if refresh == nil {
		return Credential{}, nil, fmt.Errorf("credential expired at %s and no refresh is configured", stored.Expiry)
	}
	if stored.RefreshToken == "" {
		return Credential{}, nil, fmt.Errorf("credential expired at %s and carries no refresh token", stored.Expiry)
	}
	fresh, err := refresh(stored)
	if err != nil {
		return Credential{}, nil, fmt.Errorf("credential refresh failed: %w", err)
	}
	return fresh, &fresh, nil
}
