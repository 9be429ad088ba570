// Package auth normalizes the heterogeneous authentication artifacts a
// chat-extension request can carry into a single credential usable against
// the host API.
package auth

import (
	"errors"
	"net/http"
	"strings"
)

const (
	// TokenHeader is the dedicated token header checked first
	TokenHeader = "X-GitHub-Token"

	// bearerPrefix is the standard Authorization scheme prefix
	bearerPrefix = "Bearer "

	// githubBearerPrefix is the Copilot-extension Authorization scheme prefix
	githubBearerPrefix = "GitHub-Bearer "
)

// ErrMissingCredential is returned when no recognized authentication header
// is present on the request.
var ErrMissingCredential = errors.New("missing credential")

// Scheme identifies how a credential was supplied to the gateway.
type Scheme string

const (
	// SchemePlain is a token taken verbatim from a header
	SchemePlain Scheme = "plain"
	// SchemeGitHubBearer is a token supplied via the GitHub-Bearer scheme
	SchemeGitHubBearer Scheme = "github-bearer"
	// SchemeInstallation is a GitHub App installation token minted upstream
	SchemeInstallation Scheme = "installation"
)

// Credential is an opaque bearer token plus the scheme it arrived with.
// It is immutable once resolved and lives for a single request.
type Credential struct {
	token  string
	scheme Scheme
}

// FromToken wraps an already-resolved token (e.g. an installation token
// minted by the credential issuer) in a Credential.
func FromToken(token string, scheme Scheme) Credential {
	return Credential{token: token, scheme: scheme}
}

// FromHeader extracts a credential from the request headers.
// Extraction rules are tried in order, first match wins:
//  1. the dedicated X-GitHub-Token header,
//  2. Authorization: Bearer <token>,
//  3. Authorization: GitHub-Bearer <token>.
//
// Returns ErrMissingCredential when none apply.
func FromHeader(h http.Header) (Credential, error) {
	if token := strings.TrimSpace(h.Get(TokenHeader)); token != "" {
		return Credential{token: token, scheme: SchemePlain}, nil
	}

	authz := strings.TrimSpace(h.Get("Authorization"))
	switch {
	case hasPrefixFold(authz, bearerPrefix):
		if token := strings.TrimSpace(authz[len(bearerPrefix):]); token != "" {
			return Credential{token: token, scheme: SchemePlain}, nil
		}
	case hasPrefixFold(authz, githubBearerPrefix):
		if token := strings.TrimSpace(authz[len(githubBearerPrefix):]); token != "" {
			return Credential{token: token, scheme: SchemeGitHubBearer}, nil
		}
	}

	return Credential{}, ErrMissingCredential
}

// hasPrefixFold reports whether s starts with prefix, case-insensitively.
func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// Token returns the raw bearer token. Callers must never log this value;
// use Redacted for diagnostics.
func (c Credential) Token() string {
	return c.token
}

// Scheme returns the scheme the credential arrived with.
func (c Credential) Scheme() Scheme {
	return c.scheme
}

// IsZero reports whether the credential is unresolved.
func (c Credential) IsZero() bool {
	return c.token == ""
}

// Redacted returns an opaque prefix of the token safe for diagnostics.
func (c Credential) Redacted() string {
	if c.token == "" {
		return ""
	}
	if len(c.token) <= 6 {
		return c.token[:1] + "***"
	}
	return c.token[:6] + "***"
}
