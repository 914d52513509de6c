package authkit

import "errors"

var (
	// ErrTokenMalformed is returned for structurally invalid tokens.
	ErrTokenMalformed = errors.New("malformed token")
	// ErrSignatureInvalid is returned when a token signature does not verify.
	ErrSignatureInvalid = errors.New("token signature invalid")
	// ErrTokenExpired is returned when a token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenTypeMismatch is returned when an access token is presented
	// where a refresh token is expected, or vice versa.
	ErrTokenTypeMismatch = errors.New("token type mismatch")
	// ErrTokenBlacklisted is returned for explicitly revoked tokens.
	ErrTokenBlacklisted = errors.New("token revoked")
	// ErrRefreshMismatch is returned when a presented refresh token is not
	// the one currently registered for its subject, typically because it
	// was superseded by a later issuance.
	ErrRefreshMismatch = errors.New("refresh token not registered")
	// ErrSubjectMissing is returned when a refresh token carries no subject claim.
	ErrSubjectMissing = errors.New("subject claim missing")
	// ErrStoreUnavailable is returned when the key-value store cannot be
	// reached. It is distinct from every logical rejection so operators can
	// tell an outage apart from a denied credential.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNoStore is returned by operations that require a store when the
	// service was built without one.
	ErrNoStore = errors.New("no store configured")
	// ErrServiceNotReady is returned when a Service method is called on a
	// zero or uninitialized instance.
	ErrServiceNotReady = errors.New("service not initialized")
)
