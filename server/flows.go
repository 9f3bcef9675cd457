package server

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/url"
	"time"

	oauthwrap "github.com/giantswarm/oauth-wrap"
	"github.com/giantswarm/oauth-wrap/message"
	"github.com/giantswarm/oauth-wrap/storage"
	"github.com/giantswarm/oauth-wrap/transport"
)

// ReadAuthorizationRequest reads a client's request for the server to
// obtain the resource owner's permission. If req is nil the current
// request is fetched from the channel's ambient request source.
//
// Returns (nil, nil) if the inbound carries no authorization-request
// message; fails with a ProtocolError if it carries a malformed one.
func (s *Server) ReadAuthorizationRequest(ctx context.Context, req *transport.Request) (*message.AuthorizationRequest, error) {
	if req == nil {
		var err error
		req, err = s.channel.RequestFromContext(ctx)
		if err != nil {
			return nil, err
		}
	}

	msg, err := s.channel.ReadRequest(ctx, req, message.TypeAuthorizationRequest)
	if err != nil {
		s.recordReadFailure(ctx, req, err)
		return nil, err
	}
	if msg == nil {
		return nil, nil
	}

	if s.metrics != nil {
		s.metrics.AuthorizationRequestsRead.Add(ctx, 1)
	}
	return msg.(*message.AuthorizationRequest), nil
}

// ApproveAuthorizationRequest approves the request on behalf of username,
// mints a grant, and sends the success response over the channel. This
// send is the only way a grant becomes externally visible.
//
// Callback resolution order, first match wins: the explicit callback
// argument, the request-specific callback, the client's pre-registered
// callback. With none available it fails with a NoCallback protocol
// error and sends nothing: approval cannot proceed without a destination.
func (s *Server) ApproveAuthorizationRequest(ctx context.Context, authReq *message.AuthorizationRequest, username string, callback *url.URL) error {
	if authReq == nil {
		return fmt.Errorf("authorization request is required")
	}
	if username == "" {
		return fmt.Errorf("authorizing username is required")
	}

	resp, err := s.prepareApproveAuthorizationRequest(ctx, authReq, username, callback)
	if err != nil {
		if s.Auditor != nil {
			s.Auditor.LogAuthFailure(authReq.ClientID, err.Error())
		}
		return err
	}

	if err := s.channel.Send(ctx, resp); err != nil {
		return err
	}

	if s.Auditor != nil {
		s.Auditor.LogGrantIssued(username, authReq.ClientID, authReq.Scope)
	}
	if s.metrics != nil {
		s.metrics.AuthorizationApproved.Add(ctx, 1)
	}
	return nil
}

// RejectAuthorizationRequest sends a failure response carrying a declared
// error code and never partial grant data. Callback resolution mirrors
// approval; with no callback available it fails and sends nothing.
func (s *Server) RejectAuthorizationRequest(ctx context.Context, authReq *message.AuthorizationRequest, callback *url.URL) error {
	if authReq == nil {
		return fmt.Errorf("authorization request is required")
	}

	resolved, err := s.resolveCallback(ctx, authReq, callback)
	if err != nil {
		if s.Auditor != nil {
			s.Auditor.LogAuthFailure(authReq.ClientID, err.Error())
		}
		return err
	}

	resp := message.NewAuthorizationFailure(resolved, "access_denied")
	if err := s.channel.Send(ctx, resp); err != nil {
		return err
	}

	if s.Auditor != nil {
		s.Auditor.LogAuthRejected(authReq.ClientID, "access_denied")
	}
	if s.metrics != nil {
		s.metrics.AuthorizationRejected.Add(ctx, 1)
	}
	return nil
}

// ReadAccessTokenRequest reads a token request. If req is nil the current
// request is fetched from the channel's ambient request source. Returns
// (nil, nil) if no token-request message is attached. Decode-level
// validation only; the referenced grant is not yet verified.
func (s *Server) ReadAccessTokenRequest(ctx context.Context, req *transport.Request) (*message.AccessTokenRequest, error) {
	if req == nil {
		var err error
		req, err = s.channel.RequestFromContext(ctx)
		if err != nil {
			return nil, err
		}
	}

	msg, err := s.channel.ReadRequest(ctx, req, message.TypeAccessTokenRequest)
	if err != nil {
		s.recordReadFailure(ctx, req, err)
		return nil, err
	}
	if msg == nil {
		return nil, nil
	}

	if s.metrics != nil {
		s.metrics.TokenRequestsRead.Add(ctx, 1)
	}
	return msg.(*message.AccessTokenRequest), nil
}

// PrepareAccessTokenResponse verifies the grant referenced by the request
// is real and unconsumed, consumes it, and mints a token keyed for the
// given resource-server public key. A nil resourceKey self-signs,
// assuming the authorization server doubles as the resource server.
//
// Fails with a ProtocolError if the grant is missing, already consumed,
// or expired; the error is intentionally generic so callers cannot
// distinguish the three cases.
func (s *Server) PrepareAccessTokenResponse(ctx context.Context, tokenReq *message.AccessTokenRequest, resourceKey *rsa.PublicKey) (*message.AccessTokenSuccess, error) {
	if tokenReq == nil {
		return nil, fmt.Errorf("access token request is required")
	}

	if s.RateLimiter != nil && !s.RateLimiter.Allow(tokenReq.ClientID) {
		if s.Auditor != nil {
			s.Auditor.LogRateLimitExceeded(tokenReq.ClientID)
		}
		if s.metrics != nil {
			s.metrics.RateLimitExceeded.Add(ctx, 1)
		}
		return nil, oauthwrap.ErrSlowDown("token issuance rate limit exceeded")
	}

	start := time.Now()

	grant, err := s.grants.ConsumeGrant(ctx, tokenReq.VerificationCode)
	if err != nil {
		// Log the detailed reason for operators, return a generic error so
		// callers cannot probe which failure occurred.
		s.Logger.Debug("Grant consumption failed",
			"reason", err.Error(),
			"client_id", tokenReq.ClientID,
			"code_prefix", safeTruncate(tokenReq.VerificationCode, 8))

		if s.Auditor != nil {
			s.Auditor.LogAuthFailure(tokenReq.ClientID, "invalid_grant")
		}
		if s.metrics != nil {
			s.metrics.GrantConsumeFailed.Add(ctx, 1)
		}
		if errors.Is(err, storage.ErrGrantNotFound) ||
			errors.Is(err, storage.ErrGrantConsumed) ||
			errors.Is(err, storage.ErrGrantExpired) {
			return nil, oauthwrap.ErrInvalidGrant("grant is invalid")
		}
		return nil, fmt.Errorf("grant store failure: %w", err)
	}

	if grant.ClientID != tokenReq.ClientID {
		s.Logger.Debug("Grant consumption failed",
			"reason", "client_id_mismatch",
			"expected_client_id", grant.ClientID,
			"provided_client_id", tokenReq.ClientID,
			"code_prefix", safeTruncate(tokenReq.VerificationCode, 8))

		if s.Auditor != nil {
			s.Auditor.LogAuthFailure(tokenReq.ClientID, "invalid_grant")
		}
		return nil, oauthwrap.ErrInvalidGrant("grant is invalid")
	}

	now := time.Now()
	payload := &oauthwrap.TokenPayload{
		Username:  grant.Username,
		ClientID:  grant.ClientID,
		Scope:     grant.Scope,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Duration(s.Config.AccessTokenTTL) * time.Second),
	}

	resp, err := s.channel.MintAccessToken(payload, resourceKey)
	if err != nil {
		return nil, err
	}

	if s.Auditor != nil {
		s.Auditor.LogTokenIssued(grant.Username, grant.ClientID, grant.Scope)
	}
	if s.metrics != nil {
		s.metrics.TokenIssued.Add(ctx, 1)
		s.metrics.TokenIssueDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	}
	return resp, nil
}

// TryPrepareAccessTokenResponse reads a token request from req (or the
// ambient request source when req is nil) and prepares a response for it.
// The boolean result is false when the inbound carries no token-request
// message: absence of input is a normal outcome, not a fault. Malformed
// messages and grant failures still return errors.
func (s *Server) TryPrepareAccessTokenResponse(ctx context.Context, req *transport.Request, resourceKey *rsa.PublicKey) (*message.AccessTokenSuccess, bool, error) {
	tokenReq, err := s.ReadAccessTokenRequest(ctx, req)
	if err != nil {
		return nil, false, err
	}
	if tokenReq == nil {
		return nil, false, nil
	}

	resp, err := s.PrepareAccessTokenResponse(ctx, tokenReq, resourceKey)
	if err != nil {
		return nil, true, err
	}
	return resp, true, nil
}

// prepareApproveAuthorizationRequest validates the request and builds the
// success response without sending it. All validation happens before the
// grant is persisted; no state mutates on a request that fails.
func (s *Server) prepareApproveAuthorizationRequest(ctx context.Context, authReq *message.AuthorizationRequest, username string, callback *url.URL) (*message.AuthorizationSuccess, error) {
	resolved, err := s.resolveCallback(ctx, authReq, callback)
	if err != nil {
		return nil, err
	}

	// Approval is gated on the client being resolvable even when the
	// callback came from the request itself.
	client, err := s.clients.GetClient(ctx, authReq.ClientID)
	if err != nil {
		if errors.Is(err, storage.ErrClientNotFound) {
			return nil, oauthwrap.ErrUnknownClient(fmt.Sprintf("client %q is not registered", authReq.ClientID))
		}
		return nil, fmt.Errorf("client store failure: %w", err)
	}

	if err := s.validateScopes(authReq.Scope, client.Scopes); err != nil {
		return nil, err
	}

	grant := &storage.Grant{
		ID:        generateGrantID(),
		ClientID:  authReq.ClientID,
		Username:  username,
		Scope:     authReq.Scope,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Duration(s.Config.GrantTTL) * time.Second),
	}
	if err := s.grants.SaveGrant(ctx, grant); err != nil {
		return nil, fmt.Errorf("failed to save grant: %w", err)
	}

	return message.NewAuthorizationSuccess(resolved, grant.ID, username), nil
}

// resolveCallback applies the callback precedence: explicit argument,
// request-specific callback, client's pre-registered callback. The
// resolved URI is security-validated before use; a response is never
// constructed around a callback that failed validation.
func (s *Server) resolveCallback(ctx context.Context, authReq *message.AuthorizationRequest, callback *url.URL) (*url.URL, error) {
	if callback == nil {
		callback = authReq.Callback
	}
	if callback == nil {
		client, err := s.clients.GetClient(ctx, authReq.ClientID)
		if err != nil {
			if errors.Is(err, storage.ErrClientNotFound) {
				return nil, oauthwrap.ErrUnknownClient(fmt.Sprintf("client %q is not registered", authReq.ClientID))
			}
			return nil, fmt.Errorf("client store failure: %w", err)
		}
		callback = client.Callback
	}
	if callback == nil {
		return nil, oauthwrap.ErrNoCallback("neither the request nor the client registration supplies a callback URI")
	}

	if err := s.validateCallbackURI(callback); err != nil {
		return nil, err
	}
	return callback, nil
}

// recordReadFailure audits and meters a channel read failure.
func (s *Server) recordReadFailure(ctx context.Context, req *transport.Request, err error) {
	if !oauthwrap.IsProtocolCode(err, oauthwrap.ErrorCodeReplayedNonce) {
		return
	}
	if s.Auditor != nil {
		values := req.Values()
		s.Auditor.LogReplayDetected(values.Get(oauthwrap.FieldClientID), values.Get(oauthwrap.FieldNonce))
	}
	if s.metrics != nil {
		s.metrics.ReplayDetected.Add(ctx, 1)
	}
}
