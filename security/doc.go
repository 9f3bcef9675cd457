// Package security provides the signing and verification unit for access
// tokens, plus the supporting security features of the authorization
// server: audit logging with PII protection, per-client rate limiting,
// at-rest encryption, and clock-skew-aware expiry checks.
//
// The Signer is the only component permitted to touch the server's
// private key. Keys are injected at construction time and never appear in
// a protocol message.
package security
