// Package token implements the signed-token codec used by authkit.
//
// A token is a compact JWS string carrying a flat claim set. The codec is
// pure: it performs no I/O, and all time-dependent validation flows through
// an injectable time source so expiry behavior is testable without sleeping.
//
// The wire shape of the claim set is fixed for interoperability with
// existing deployments: reserved keys are "user_id", "exp", "iat", and
// "type"; caller-supplied extra claims are merged in verbatim.
package token
