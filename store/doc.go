// Package store adapts a Redis client to the opaque key-value operations
// the token service and the distributed lock are built on.
//
// The adapter adds no semantics of its own: keys and values are opaque
// strings, TTLs are passed through, and the single non-trivial primitive is
// CompareAndDelete, a server-side atomic check-and-delete used for
// ownership-checked lock release. Transport failures are wrapped with
// [ErrUnavailable] so callers can tell a Redis outage apart from a logical
// miss.
package store
