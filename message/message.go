// Package message defines the typed protocol message variants exchanged in
// the delegated-authorization flow, together with the per-variant field
// schemas used to validate them at decode time.
//
// A message instance is valid only if every field its variant requires is
// present and well-formed. Validity is established exactly once, when the
// message is decoded or constructed; downstream code never re-checks it.
package message

import (
	"net/url"
	"strconv"
	"time"

	oauthwrap "github.com/giantswarm/oauth-wrap"
)

// Direction indicates whether a message travels toward the server
// (request) or away from it (response).
type Direction int

const (
	// DirectionRequest marks client-to-server messages
	DirectionRequest Direction = iota

	// DirectionResponse marks server-to-client messages
	DirectionResponse
)

// Type tags a protocol message variant.
type Type string

const (
	// TypeAuthorizationRequest is a client's request for user consent
	TypeAuthorizationRequest Type = "authorization_request"

	// TypeAuthorizationSuccess is a success redirect carrying a grant
	TypeAuthorizationSuccess Type = "authorization_success"

	// TypeAuthorizationFailure is a failure redirect carrying an error code
	TypeAuthorizationFailure Type = "authorization_failure"

	// TypeAccessTokenRequest presents a grant in exchange for a token
	TypeAccessTokenRequest Type = "access_token_request"

	// TypeAccessTokenSuccess carries the signed access token
	TypeAccessTokenSuccess Type = "access_token_success"
)

// Message is one wire message of the protocol. Implementations are
// immutable after construction.
type Message interface {
	// Type returns the variant tag
	Type() Type

	// Direction returns whether this is a request or a response
	Direction() Direction

	// Version returns the protocol version tag
	Version() string

	// Encode serializes the message fields into wire form
	Encode() url.Values
}

// Indirect reports whether responses of the given type travel by redirect
// through the user agent rather than directly in the response body.
func Indirect(t Type) bool {
	return t == TypeAuthorizationSuccess || t == TypeAuthorizationFailure
}

// AuthorizationRequest is a client's request that the authorization server
// obtain the resource owner's permission for access to protected resources.
type AuthorizationRequest struct {
	// ClientID identifies the requesting client
	ClientID string

	// Callback is the request-specific callback URI, nil if the client
	// relies on its pre-registered callback
	Callback *url.URL

	// Scope is the requested access scope, empty if unscoped
	Scope string

	// Nonce is the single-use replay-prevention value
	Nonce string
}

func (m *AuthorizationRequest) Type() Type           { return TypeAuthorizationRequest }
func (m *AuthorizationRequest) Direction() Direction { return DirectionRequest }
func (m *AuthorizationRequest) Version() string      { return oauthwrap.ProtocolVersion }

func (m *AuthorizationRequest) Encode() url.Values {
	v := url.Values{}
	v.Set(oauthwrap.FieldVersion, oauthwrap.ProtocolVersion)
	v.Set(oauthwrap.FieldClientID, m.ClientID)
	v.Set(oauthwrap.FieldNonce, m.Nonce)
	if m.Callback != nil {
		v.Set(oauthwrap.FieldCallback, m.Callback.String())
	}
	if m.Scope != "" {
		v.Set(oauthwrap.FieldScope, m.Scope)
	}
	return v
}

// AuthorizationSuccess is the redirect response delivering an approved
// grant back to the client through the resource owner's user agent.
type AuthorizationSuccess struct {
	// Callback is the resolved redirect destination, never nil
	Callback *url.URL

	// VerificationCode is the grant identifier the client will later
	// present at the token endpoint
	VerificationCode string

	// Username is the resource owner who approved the request
	Username string
}

// NewAuthorizationSuccess constructs a success response. Callback
// resolution happens before construction; callers must never pass nil.
func NewAuthorizationSuccess(callback *url.URL, verificationCode, username string) *AuthorizationSuccess {
	return &AuthorizationSuccess{
		Callback:         callback,
		VerificationCode: verificationCode,
		Username:         username,
	}
}

func (m *AuthorizationSuccess) Type() Type           { return TypeAuthorizationSuccess }
func (m *AuthorizationSuccess) Direction() Direction { return DirectionResponse }
func (m *AuthorizationSuccess) Version() string      { return oauthwrap.ProtocolVersion }

func (m *AuthorizationSuccess) Encode() url.Values {
	v := url.Values{}
	v.Set(oauthwrap.FieldVersion, oauthwrap.ProtocolVersion)
	v.Set(oauthwrap.FieldVerificationCode, m.VerificationCode)
	v.Set(oauthwrap.FieldUsername, m.Username)
	return v
}

// AuthorizationFailure is the redirect response delivering a rejection. It
// carries a declared error code and never partial grant data.
type AuthorizationFailure struct {
	// Callback is the resolved redirect destination, never nil
	Callback *url.URL

	// ErrorReason is the declared protocol error code
	ErrorReason string
}

// NewAuthorizationFailure constructs a failure response. Callback
// resolution happens before construction; callers must never pass nil.
func NewAuthorizationFailure(callback *url.URL, errorReason string) *AuthorizationFailure {
	return &AuthorizationFailure{
		Callback:    callback,
		ErrorReason: errorReason,
	}
}

func (m *AuthorizationFailure) Type() Type           { return TypeAuthorizationFailure }
func (m *AuthorizationFailure) Direction() Direction { return DirectionResponse }
func (m *AuthorizationFailure) Version() string      { return oauthwrap.ProtocolVersion }

func (m *AuthorizationFailure) Encode() url.Values {
	v := url.Values{}
	v.Set(oauthwrap.FieldVersion, oauthwrap.ProtocolVersion)
	v.Set(oauthwrap.FieldErrorReason, m.ErrorReason)
	return v
}

// AccessTokenRequest presents an authorization grant at the token endpoint.
type AccessTokenRequest struct {
	// ClientID identifies the requesting client
	ClientID string

	// VerificationCode is the grant identifier being exchanged
	VerificationCode string

	// Nonce is the single-use replay-prevention value
	Nonce string
}

func (m *AccessTokenRequest) Type() Type           { return TypeAccessTokenRequest }
func (m *AccessTokenRequest) Direction() Direction { return DirectionRequest }
func (m *AccessTokenRequest) Version() string      { return oauthwrap.ProtocolVersion }

func (m *AccessTokenRequest) Encode() url.Values {
	v := url.Values{}
	v.Set(oauthwrap.FieldVersion, oauthwrap.ProtocolVersion)
	v.Set(oauthwrap.FieldClientID, m.ClientID)
	v.Set(oauthwrap.FieldVerificationCode, m.VerificationCode)
	v.Set(oauthwrap.FieldNonce, m.Nonce)
	return v
}

// AccessTokenSuccess carries a signed access token and its lifetime.
type AccessTokenSuccess struct {
	// AccessToken is the signed token payload
	AccessToken string

	// ExpiresIn is the token lifetime
	ExpiresIn time.Duration
}

// NewAccessTokenSuccess constructs a token response. Token responses are
// only ever constructed from requests that passed validation; no token is
// minted without a verified request.
func NewAccessTokenSuccess(accessToken string, expiresIn time.Duration) *AccessTokenSuccess {
	return &AccessTokenSuccess{
		AccessToken: accessToken,
		ExpiresIn:   expiresIn,
	}
}

func (m *AccessTokenSuccess) Type() Type           { return TypeAccessTokenSuccess }
func (m *AccessTokenSuccess) Direction() Direction { return DirectionResponse }
func (m *AccessTokenSuccess) Version() string      { return oauthwrap.ProtocolVersion }

func (m *AccessTokenSuccess) Encode() url.Values {
	v := url.Values{}
	v.Set(oauthwrap.FieldVersion, oauthwrap.ProtocolVersion)
	v.Set(oauthwrap.FieldAccessToken, m.AccessToken)
	v.Set(oauthwrap.FieldAccessTokenExpiresIn, strconv.FormatInt(int64(m.ExpiresIn.Seconds()), 10))
	return v
}
