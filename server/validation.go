package server

import (
	"fmt"
	"net/url"
	"strings"

	oauthwrap "github.com/giantswarm/oauth-wrap"
)

// dangerousSchemes are URI schemes that must never receive a grant, no
// matter how the callback was resolved. A grant delivered to one of
// these could execute in the resource owner's browser or leak to disk.
var dangerousSchemes = []string{"javascript", "data", "file", "vbscript", "about"}

// validateCallbackURI checks a resolved callback URI before any response
// is constructed around it.
func (s *Server) validateCallbackURI(callback *url.URL) error {
	if !callback.IsAbs() {
		return oauthwrap.ErrInvalidCallback("callback URI must be absolute")
	}

	if callback.Fragment != "" {
		return oauthwrap.ErrInvalidCallback("callback URI must not contain a fragment")
	}

	scheme := strings.ToLower(callback.Scheme)
	for _, dangerous := range dangerousSchemes {
		if scheme == dangerous {
			return oauthwrap.ErrInvalidCallback(fmt.Sprintf("callback URI scheme %q is not allowed", scheme))
		}
	}

	// Loopback callbacks may use plain HTTP for local development.
	// Everything else must use HTTPS unless explicitly allowed.
	if scheme == "http" && !isLoopback(callback.Hostname()) && !s.Config.AllowInsecureCallbacks {
		return oauthwrap.ErrInvalidCallback("callback URI must use HTTPS on non-loopback hosts")
	}

	return nil
}

// validateScopes checks the requested scope string against the server's
// supported scopes and the client's registered scopes. An empty server
// or client scope list places no restriction.
func (s *Server) validateScopes(scope string, clientScopes []string) error {
	if scope == "" {
		return nil
	}

	requested := strings.Fields(scope)

	if len(s.Config.SupportedScopes) > 0 {
		for _, sc := range requested {
			if !containsScope(s.Config.SupportedScopes, sc) {
				return oauthwrap.ErrInvalidScope(fmt.Sprintf("scope %q is not supported", sc))
			}
		}
	}

	if len(clientScopes) > 0 {
		for _, sc := range requested {
			if !containsScope(clientScopes, sc) {
				return oauthwrap.ErrInvalidScope(fmt.Sprintf("scope %q is not registered for this client", sc))
			}
		}
	}

	return nil
}

func containsScope(scopes []string, scope string) bool {
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
