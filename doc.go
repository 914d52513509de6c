// Package authkit is a session-credential control plane: it issues,
// verifies, refreshes, and revokes signed session tokens backed by a shared
// Redis store, and the companion lock package provides a distributed
// mutual-exclusion primitive over the same store.
//
// The package is designed for concurrent server workloads: Service methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build]. There is no process-wide state; every Service owns its
// store handle explicitly.
//
// # Validation contract
//
// [Service.Verify] and [Service.DecodeClaims] form the single authorization
// gate consumed per request. Verify collapses every rejection cause
// (malformed, bad signature, expired, wrong type, revoked) to false so that
// callers cannot leak validation internals; [Service.Check] returns the
// underlying error kind for callers and operators that need to distinguish
// causes, and a store outage is always surfaced as [ErrStoreUnavailable]
// rather than being folded into a logical rejection.
//
// # Refresh-token invariant
//
// At most one refresh token is live per subject: issuing a new one
// overwrites the registry entry and silently invalidates its predecessor.
// The overwrite is last-write-wins: concurrent issuance for
// one subject is not serialized, and a superseded token is rejected by the
// registry-equality check in [Service.Refresh].
package authkit
