// Package lock provides a Redis-backed mutual-exclusion primitive for
// serializing access to shared state across processes.
//
// Acquisition is an atomic SET NX EX of a caller-unique identifier with a
// bounded, fixed-delay retry loop. The TTL bounds worst-case staleness when
// a holder crashes without releasing. Release is an atomic server-side
// check-and-delete: only the holder presenting the matching identifier can
// remove the record.
package lock
