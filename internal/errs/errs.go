// Package errs defines the gateway's error taxonomy.
//
// Every concrete error matches exactly one sentinel through errors.Is, so
// callers can branch on the kind without caring which component produced it:
//
//	if errors.Is(err, errs.ErrVenueUnavailable) { ... }
package errs

import (
	"errors"
	"fmt"
	"strings"

	"poa/internal/venue"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrAuthentication   = errors.New("authentication error")
	ErrVenueUnavailable = errors.New("venue unavailable")
	ErrVenueInit        = errors.New("venue init failed")
	ErrRemoteCall       = errors.New("remote call failed")
	// ErrStaleToken marks a remote rejection caused by an expired or revoked access token.
	ErrStaleToken = errors.New("stale access token")
)

// ValidationError reports a malformed or contradictory order request.
type ValidationError struct {
	Field  string
	Reason string
}

func Validation(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid order: " + e.Reason
	}
	return fmt.Sprintf("invalid order: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// AuthenticationError covers shared-secret mismatches and rejected venue credentials.
type AuthenticationError struct {
	Venue  venue.ID
	Reason string
	Err    error
}

func Authentication(v venue.ID, reason string, cause error) *AuthenticationError {
	return &AuthenticationError{Venue: v, Reason: reason, Err: cause}
}

func (e *AuthenticationError) Error() string {
	var b strings.Builder
	b.WriteString("authentication failed")
	if e.Venue != "" {
		b.WriteString(" (" + string(e.Venue) + ")")
	}
	if e.Reason != "" {
		b.WriteString(": " + e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthentication }

func (e *AuthenticationError) Unwrap() error { return e.Err }

// VenueUnavailableError means the venue has no usable credentials in this process.
type VenueUnavailableError struct {
	Venue  venue.ID
	Reason string
}

func Unavailable(v venue.ID, reason string) *VenueUnavailableError {
	return &VenueUnavailableError{Venue: v, Reason: reason}
}

func (e *VenueUnavailableError) Error() string {
	return fmt.Sprintf("venue %s unavailable: %s", e.Venue, e.Reason)
}

func (e *VenueUnavailableError) Is(target error) bool { return target == ErrVenueUnavailable }

// VenueInitError wraps a failure while constructing or first authenticating an adapter.
type VenueInitError struct {
	Venue venue.ID
	Err   error
}

func Init(v venue.ID, cause error) *VenueInitError {
	return &VenueInitError{Venue: v, Err: cause}
}

func (e *VenueInitError) Error() string {
	return fmt.Sprintf("venue %s init failed: %v", e.Venue, e.Err)
}

func (e *VenueInitError) Is(target error) bool { return target == ErrVenueInit }

func (e *VenueInitError) Unwrap() error { return e.Err }

// RemoteCallError is a failed call against an already constructed adapter.
// Code carries the venue's own error code when one was returned.
type RemoteCallError struct {
	Venue venue.ID
	Op    string
	Code  string
	Stale bool
	Err   error
}

func Remote(v venue.ID, op string, cause error) *RemoteCallError {
	return &RemoteCallError{Venue: v, Op: op, Err: cause}
}

// RemoteCode builds a RemoteCallError from a venue error code and message.
func RemoteCode(v venue.ID, op, code, msg string) *RemoteCallError {
	return &RemoteCallError{Venue: v, Op: op, Code: code, Err: errors.New(msg)}
}

func (e *RemoteCallError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s failed", e.Venue, e.Op)
	if e.Code != "" {
		b.WriteString(" [" + e.Code + "]")
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *RemoteCallError) Is(target error) bool {
	if target == ErrRemoteCall {
		return true
	}
	return e.Stale && target == ErrStaleToken
}

func (e *RemoteCallError) Unwrap() error { return e.Err }

// AsRemote wraps err as a RemoteCallError unless it already belongs to the taxonomy.
func AsRemote(v venue.ID, op string, err error) error {
	if err == nil || Classified(err) {
		return err
	}
	return Remote(v, op, err)
}

// Classified reports whether err already carries one of the taxonomy kinds.
func Classified(err error) bool {
	return Kind(err) != nil
}

// Kind returns the sentinel err matches, or nil.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrAuthentication, ErrVenueUnavailable, ErrVenueInit, ErrRemoteCall} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
