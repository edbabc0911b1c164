package cookies

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// AccessExpiry reads the exp claim of a JWT without verifying its signature. The
// client cannot verify it anyway; the result only decides when to refresh early.
func AccessExpiry(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	token, _, err := jwtlib.NewParser().ParseUnverified(raw, jwtlib.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// CredentialState describes the cookies the refresh protocol cares about.
type CredentialState struct {
	HasAccess   bool
	HasRefresh  bool
	AccessUntil time.Time // zero when unknown
}

// Credentials inspects the access and refresh cookies.
func (j *Jar) Credentials(accessName, refreshName string) CredentialState {
	var state CredentialState
	if raw, ok := j.Value(accessName); ok {
		state.HasAccess = true
		if exp, ok := AccessExpiry(raw); ok {
			state.AccessUntil = exp
		}
	}
	state.HasRefresh = j.Has(refreshName)
	return state
}

// Stale reports whether a request sent now would most likely be rejected while a
// refresh could still succeed.
func (c CredentialState) Stale(now time.Time, skew time.Duration) bool {
	if !c.HasRefresh {
		return false
	}
	if !c.HasAccess {
		return true
	}
	return !c.AccessUntil.IsZero() && !now.Add(skew).Before(c.AccessUntil)
}
