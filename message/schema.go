package message

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
	"unicode"

	oauthwrap "github.com/giantswarm/oauth-wrap"
)

// maxFieldLength bounds individual field values to keep hostile input
// from inflating memory or log output.
const maxFieldLength = 2048

// schema declares the required and optional fields of one message variant.
type schema struct {
	required []string
	optional []string
}

// schemas is the field schema table, indexed by variant tag.
var schemas = map[Type]schema{
	TypeAuthorizationRequest: {
		required: []string{oauthwrap.FieldVersion, oauthwrap.FieldClientID, oauthwrap.FieldNonce},
		optional: []string{oauthwrap.FieldCallback, oauthwrap.FieldScope},
	},
	TypeAuthorizationSuccess: {
		required: []string{oauthwrap.FieldVersion, oauthwrap.FieldVerificationCode, oauthwrap.FieldUsername},
	},
	TypeAuthorizationFailure: {
		required: []string{oauthwrap.FieldVersion, oauthwrap.FieldErrorReason},
	},
	TypeAccessTokenRequest: {
		required: []string{oauthwrap.FieldVersion, oauthwrap.FieldClientID, oauthwrap.FieldVerificationCode, oauthwrap.FieldNonce},
	},
	TypeAccessTokenSuccess: {
		required: []string{oauthwrap.FieldVersion, oauthwrap.FieldAccessToken, oauthwrap.FieldAccessTokenExpiresIn},
	},
}

// NonceField reports whether the variant declares a nonce field subject to
// replay checking.
func NonceField(t Type) bool {
	for _, f := range schemas[t].required {
		if f == oauthwrap.FieldNonce {
			return true
		}
	}
	return false
}

// Decode inspects transport-neutral field values and returns the typed
// message if the values carry a schema-valid message of the wanted
// variant.
//
// Absence is not an error: Decode returns (nil, nil) when the values carry
// no protocol message at all, or a message of a different variant than the
// caller asked for. It fails with a ProtocolError only when a message of
// the wanted variant IS present but is malformed or targets an unsupported
// protocol version.
func Decode(values url.Values, want Type) (Message, error) {
	version := values.Get(oauthwrap.FieldVersion)
	if version == "" {
		// No protocol message attached to this request.
		return nil, nil
	}
	if version != oauthwrap.ProtocolVersion {
		return nil, oauthwrap.ErrUnsupportedVersion(
			fmt.Sprintf("protocol version %q is not supported (supported: %s)", version, oauthwrap.ProtocolVersion))
	}

	detected, ok := detectType(values)
	if !ok || detected != want {
		// A message is present but it is not the variant the caller asked
		// for. That variant is absent from this request.
		return nil, nil
	}

	if err := validateSchema(values, want); err != nil {
		return nil, err
	}

	switch want {
	case TypeAuthorizationRequest:
		return decodeAuthorizationRequest(values)
	case TypeAuthorizationSuccess:
		return &AuthorizationSuccess{
			VerificationCode: values.Get(oauthwrap.FieldVerificationCode),
			Username:         values.Get(oauthwrap.FieldUsername),
		}, nil
	case TypeAuthorizationFailure:
		return &AuthorizationFailure{
			ErrorReason: values.Get(oauthwrap.FieldErrorReason),
		}, nil
	case TypeAccessTokenRequest:
		return decodeAccessTokenRequest(values)
	case TypeAccessTokenSuccess:
		return decodeAccessTokenSuccess(values)
	default:
		return nil, oauthwrap.ErrMalformedMessage(fmt.Sprintf("unknown message variant %q", want))
	}
}

// detectType determines which variant a set of protocol field values
// carries, based on the discriminating fields each variant declares.
func detectType(values url.Values) (Type, bool) {
	hasClient := values.Get(oauthwrap.FieldClientID) != ""
	hasCode := values.Get(oauthwrap.FieldVerificationCode) != ""
	hasToken := values.Get(oauthwrap.FieldAccessToken) != ""
	hasErr := values.Get(oauthwrap.FieldErrorReason) != ""

	switch {
	case hasToken:
		return TypeAccessTokenSuccess, true
	case hasClient && hasCode:
		return TypeAccessTokenRequest, true
	case hasClient:
		return TypeAuthorizationRequest, true
	case hasErr:
		return TypeAuthorizationFailure, true
	case hasCode:
		return TypeAuthorizationSuccess, true
	}
	return "", false
}

// validateSchema checks required-field presence and field well-formedness
// for the given variant.
func validateSchema(values url.Values, t Type) error {
	sch, ok := schemas[t]
	if !ok {
		return oauthwrap.ErrMalformedMessage(fmt.Sprintf("unknown message variant %q", t))
	}
	for _, field := range sch.required {
		if values.Get(field) == "" {
			return oauthwrap.ErrMalformedMessage(fmt.Sprintf("missing required field %s", field))
		}
	}
	for _, field := range append(append([]string{}, sch.required...), sch.optional...) {
		if err := validateFieldValue(field, values.Get(field)); err != nil {
			return err
		}
	}
	return nil
}

// validateFieldValue rejects oversized values and control characters,
// which have no legitimate place in any protocol field.
func validateFieldValue(field, value string) error {
	if len(value) > maxFieldLength {
		return oauthwrap.ErrMalformedMessage(fmt.Sprintf("field %s exceeds %d characters", field, maxFieldLength))
	}
	for _, r := range value {
		if unicode.IsControl(r) {
			return oauthwrap.ErrMalformedMessage(fmt.Sprintf("field %s contains control characters", field))
		}
	}
	return nil
}

func decodeAuthorizationRequest(values url.Values) (*AuthorizationRequest, error) {
	msg := &AuthorizationRequest{
		ClientID: values.Get(oauthwrap.FieldClientID),
		Scope:    values.Get(oauthwrap.FieldScope),
		Nonce:    values.Get(oauthwrap.FieldNonce),
	}
	if raw := values.Get(oauthwrap.FieldCallback); raw != "" {
		callback, err := parseCallback(raw)
		if err != nil {
			return nil, err
		}
		msg.Callback = callback
	}
	return msg, nil
}

func decodeAccessTokenRequest(values url.Values) (*AccessTokenRequest, error) {
	return &AccessTokenRequest{
		ClientID:         values.Get(oauthwrap.FieldClientID),
		VerificationCode: values.Get(oauthwrap.FieldVerificationCode),
		Nonce:            values.Get(oauthwrap.FieldNonce),
	}, nil
}

func decodeAccessTokenSuccess(values url.Values) (*AccessTokenSuccess, error) {
	seconds, err := strconv.ParseInt(values.Get(oauthwrap.FieldAccessTokenExpiresIn), 10, 64)
	if err != nil || seconds < 0 {
		return nil, oauthwrap.ErrMalformedMessage(
			fmt.Sprintf("field %s must be a non-negative integer", oauthwrap.FieldAccessTokenExpiresIn))
	}
	return &AccessTokenSuccess{
		AccessToken: values.Get(oauthwrap.FieldAccessToken),
		ExpiresIn:   time.Duration(seconds) * time.Second,
	}, nil
}

// parseCallback parses a callback URI and requires it to be absolute;
// a relative callback gives the server no destination to redirect to.
func parseCallback(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, oauthwrap.ErrMalformedMessage(fmt.Sprintf("invalid callback URI: %v", err))
	}
	if !u.IsAbs() {
		return nil, oauthwrap.ErrMalformedMessage("callback URI must be absolute")
	}
	return u, nil
}
