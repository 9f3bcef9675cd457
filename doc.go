// Package oauthwrap implements the server side of a three-legged
// delegated-authorization protocol: a client application asks a resource
// owner to grant it access to protected resources, and the authorization
// server mediates consent and issues a signed access token the client
// later presents to a resource server.
//
// The root package defines the error taxonomy, protocol constants, and the
// token payload shared across the library. The protocol itself lives in
// subpackages:
//
//   - message: typed protocol message variants with per-variant schemas
//   - channel: the encode/decode/validation boundary over a transport
//   - security: token signing and verification, auditing, rate limiting
//   - storage: client, nonce, and grant persistence interfaces
//   - transport: transport-neutral request/response shapes
//   - transport/coordinating: an in-process two-party rendezvous transport
//   - server: the authorization-server flow logic
//   - instrumentation: OpenTelemetry metrics and tracing
package oauthwrap
