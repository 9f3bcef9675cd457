// Package channel implements the transport-agnostic boundary between the
// protocol core and the wire: it decodes and validates inbound protocol
// messages, serializes outbound ones, and performs exactly one transport
// write per send.
//
// Validation happens here, once, at decode time: required-field presence,
// identifier format, protocol version, and nonce freshness. Downstream
// code treats a decoded message as valid.
package channel

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	oauthwrap "github.com/giantswarm/oauth-wrap"
	"github.com/giantswarm/oauth-wrap/message"
	"github.com/giantswarm/oauth-wrap/security"
	"github.com/giantswarm/oauth-wrap/storage"
	"github.com/giantswarm/oauth-wrap/transport"
)

// DefaultNonceTTL is how long recorded nonces are tracked. Replays beyond
// this window are caught by message freshness checks instead.
const DefaultNonceTTL = 10 * time.Minute

// Channel encodes, decodes, and validates protocol messages over a
// pluggable transport. It owns the signer used to mint access tokens; the
// signing key never appears in a message.
type Channel struct {
	transport transport.Transport
	nonces    storage.NonceStore
	signer    *security.Signer
	source    transport.RequestSource
	logger    *slog.Logger
	nonceTTL  time.Duration
}

// New creates a channel over the given transport. The nonce store backs
// replay checks; the signer mints access tokens.
func New(t transport.Transport, nonces storage.NonceStore, signer *security.Signer, logger *slog.Logger) (*Channel, error) {
	if t == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if nonces == nil {
		return nil, fmt.Errorf("nonce store is required")
	}
	if signer == nil {
		return nil, fmt.Errorf("signer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		transport: t,
		nonces:    nonces,
		signer:    signer,
		logger:    logger,
		nonceTTL:  DefaultNonceTTL,
	}, nil
}

// SetRequestSource sets the accessor used to obtain the current inbound
// request when a caller passes none explicitly.
func (c *Channel) SetRequestSource(source transport.RequestSource) {
	c.source = source
}

// SetNonceTTL overrides the nonce tracking window.
func (c *Channel) SetNonceTTL(ttl time.Duration) {
	if ttl > 0 {
		c.nonceTTL = ttl
	}
}

// RequestFromContext fetches the current inbound request from the
// configured request source.
func (c *Channel) RequestFromContext(ctx context.Context) (*transport.Request, error) {
	if c.source == nil {
		return nil, fmt.Errorf("no request supplied and no request source configured")
	}
	return c.source.CurrentRequest(ctx)
}

// ReadRequest decodes a protocol message of the wanted variant from req.
// It returns (nil, nil) when req carries no such message; that is an
// expected outcome on arbitrary requests, not an error. It fails with a
// ProtocolError when a message of the variant is present but malformed,
// targets an unsupported version, or replays a nonce.
func (c *Channel) ReadRequest(ctx context.Context, req *transport.Request, want message.Type) (message.Message, error) {
	if req == nil {
		return nil, fmt.Errorf("transport request is required")
	}

	msg, err := message.Decode(req.Values(), want)
	if err != nil {
		c.logger.Debug("Protocol message rejected at decode",
			"want", string(want),
			"error", err)
		return nil, err
	}
	if msg == nil {
		return nil, nil
	}

	if message.NonceField(want) {
		if err := c.checkNonce(ctx, msg); err != nil {
			return nil, err
		}
	}

	return msg, nil
}

// Send serializes msg and performs exactly one transport write. There are
// no retries: protocol messages are not idempotent-safe to resend, and a
// blind resend could duplicate a grant.
func (c *Channel) Send(ctx context.Context, msg message.Message) error {
	if msg == nil {
		return fmt.Errorf("message is required")
	}

	resp, err := encodeResponse(msg)
	if err != nil {
		return err
	}

	if err := c.transport.Deliver(ctx, resp); err != nil {
		return fmt.Errorf("transport delivery failed: %w", err)
	}

	c.logger.Debug("Protocol message sent",
		"type", string(msg.Type()),
		"indirect", message.Indirect(msg.Type()))
	return nil
}

// MintAccessToken signs payload for the given resource-server public key
// and wraps it in a token response. A nil resourceKey self-signs,
// assuming the authorization server doubles as the resource server.
func (c *Channel) MintAccessToken(payload *oauthwrap.TokenPayload, resourceKey *rsa.PublicKey) (*message.AccessTokenSuccess, error) {
	if payload == nil {
		return nil, fmt.Errorf("token payload is required")
	}
	// A payload whose expiry has already passed would mint a token that is
	// dead on arrival; that is a caller bug, not a signable payload.
	if payload.Expired(0) {
		return nil, fmt.Errorf("token payload expired at %s", payload.ExpiresAt.Format(time.RFC3339))
	}

	signed, err := c.signer.Sign(payload, resourceKey)
	if err != nil {
		return nil, fmt.Errorf("failed to mint access token: %w", err)
	}
	return message.NewAccessTokenSuccess(signed, payload.ExpiresIn()), nil
}

// checkNonce applies the replay check atomically against the nonce store.
func (c *Channel) checkNonce(ctx context.Context, msg message.Message) error {
	nonce := msg.Encode().Get(oauthwrap.FieldNonce)
	fresh, err := c.nonces.CheckAndRecord(ctx, nonce, time.Now().Add(c.nonceTTL))
	if err != nil {
		return fmt.Errorf("nonce store check failed: %w", err)
	}
	if !fresh {
		return oauthwrap.ErrReplayedNonce("nonce has been seen before")
	}
	return nil
}

// encodeResponse builds the transport response for a message: indirect
// messages become a redirect with fields in the destination query, direct
// messages carry fields in the body.
func encodeResponse(msg message.Message) (*transport.Response, error) {
	fields := msg.Encode()

	if message.Indirect(msg.Type()) {
		callback, err := responseCallback(msg)
		if err != nil {
			return nil, err
		}
		dest := *callback
		query := dest.Query()
		for k, vs := range fields {
			for _, v := range vs {
				query.Set(k, v)
			}
		}
		dest.RawQuery = query.Encode()
		return &transport.Response{
			Status:   http.StatusFound,
			Header:   http.Header{"Location": []string{dest.String()}},
			Redirect: &dest,
		}, nil
	}

	return &transport.Response{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": []string{"application/x-www-form-urlencoded"}},
		Body:   fields,
	}, nil
}

// responseCallback extracts the resolved callback from an indirect
// response message. Construction guarantees it is non-nil; a nil callback
// here is a programming error surfaced as one.
func responseCallback(msg message.Message) (*url.URL, error) {
	switch m := msg.(type) {
	case *message.AuthorizationSuccess:
		if m.Callback == nil {
			return nil, fmt.Errorf("authorization success constructed without a callback")
		}
		return m.Callback, nil
	case *message.AuthorizationFailure:
		if m.Callback == nil {
			return nil, fmt.Errorf("authorization failure constructed without a callback")
		}
		return m.Callback, nil
	default:
		return nil, fmt.Errorf("message type %s is not an indirect response", msg.Type())
	}
}
