package oauthwrap

// ProtocolVersion is the protocol version this library speaks. Messages
// carrying any other version value are rejected at decode time.
const ProtocolVersion = "1.0"

// Wire field names (protocol v1.0, form-encoded).
//
// Authorization requests and responses travel indirectly (via redirect
// through the resource owner's user agent); token requests and responses
// travel directly between client and server.
const (
	// FieldVersion tags every protocol message with its version
	FieldVersion = "wrap_version"

	// FieldClientID identifies the requesting client application
	FieldClientID = "wrap_client_id"

	// FieldCallback is the request-specific callback URI (optional;
	// falls back to the client's pre-registered callback)
	FieldCallback = "wrap_callback"

	// FieldScope is the requested access scope (optional)
	FieldScope = "wrap_scope"

	// FieldNonce is a single-use value preventing message replay
	FieldNonce = "wrap_nonce"

	// FieldVerificationCode carries the grant identifier: issued in a
	// success response, presented back in the access-token request
	FieldVerificationCode = "wrap_verification_code"

	// FieldUsername is the resource owner who approved the request
	FieldUsername = "wrap_username"

	// FieldErrorReason carries the error code on a failure response
	FieldErrorReason = "wrap_error_reason"

	// FieldAccessToken carries the signed access token
	FieldAccessToken = "wrap_access_token"

	// FieldAccessTokenExpiresIn is the token lifetime in seconds
	FieldAccessTokenExpiresIn = "wrap_access_token_expires_in"
)

// Default lifetimes and tolerances, overridable via server.Config.
const (
	// DefaultGrantTTLSeconds is how long an unconsumed grant stays valid
	DefaultGrantTTLSeconds = 600 // 10 minutes

	// DefaultAccessTokenTTLSeconds is how long issued access tokens stay valid
	DefaultAccessTokenTTLSeconds = 3600 // 1 hour

	// DefaultClockSkewSeconds is the grace period applied to expiry checks,
	// preventing false rejections from time drift between parties
	DefaultClockSkewSeconds = 5
)
