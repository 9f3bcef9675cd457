// Package server implements the authorization-server flow logic: it reads
// authorization requests off the channel, turns a decision into a signed
// success or failure redirect, and exchanges a verified grant for a
// signed access token.
//
// The server is stateless between protocol legs. Flow state is
// reconstructed from the inbound request plus the externally persisted
// grant records; nothing is held in server memory across calls.
package server
