package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/parisxmas/fsdash/internal/session"
	"github.com/parisxmas/fsdash/pkg/fsclient"
)

// ErrLoginRejected is the error every verifier returns for refused credentials.
var ErrLoginRejected = session.ErrLoginRejected

// APIKeyVerifier accepts a service URL and API key when the URL is one of the
// allowed endpoints and the service answers /health/checkCreds with a 2xx.
// Unlisted URLs are rejected without any request.
type APIKeyVerifier struct {
	allowed map[string]struct{}
	opts    []fsclient.Option
}

func NewAPIKeyVerifier(allowed []string, opts ...fsclient.Option) *APIKeyVerifier {
	v := &APIKeyVerifier{allowed: make(map[string]struct{}, len(allowed)), opts: opts}
	for _, u := range allowed {
		if u = normalizeURL(u); u != "" {
			v.allowed[u] = struct{}{}
		}
	}
	return v
}

func normalizeURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

func (v *APIKeyVerifier) Verify(ctx context.Context, c session.Credentials) (session.Credentials, error) {
	apiURL := normalizeURL(c.APIURL)
	apiKey := strings.TrimSpace(c.APIKey)
	if apiURL == "" || apiKey == "" {
		return session.Credentials{}, ErrLoginRejected
	}
	if _, ok := v.allowed[apiURL]; !ok {
		return session.Credentials{}, fmt.Errorf("%w: endpoint %q is not allowed", ErrLoginRejected, apiURL)
	}
	if err := fsclient.New(apiURL, apiKey, v.opts...).CheckCreds(ctx); err != nil {
		return session.Credentials{}, fmt.Errorf("%w: %v", ErrLoginRejected, err)
	}
	return session.Credentials{APIURL: apiURL, APIKey: apiKey}, nil
}

// PasswordVerifier checks a single configured operator account and hands out
// the configured service endpoint.
type PasswordVerifier struct {
	Username     string
	PasswordHash string
	APIURL       string
	APIKey       string
}

func (v *PasswordVerifier) Verify(_ context.Context, c session.Credentials) (session.Credentials, error) {
	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(c.Username)), []byte(v.Username)) == 1
	// always run bcrypt so a wrong username costs the same as a wrong password
	passOK := CheckPassword(c.Password, v.PasswordHash)
	if !userOK || !passOK {
		return session.Credentials{}, ErrLoginRejected
	}
	return session.Credentials{APIURL: normalizeURL(v.APIURL), APIKey: v.APIKey}, nil
}
