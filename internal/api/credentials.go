package api

import (
	"context"
	"net/http"
	"os"

	"golang.org/x/oauth2"
)

// CredentialProvider supplies the bearer token attached to each request.
// An empty token means the request goes out without an Authorization header.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

// EnvToken reads the token from the named environment variable on every
// request, so a token rotated by another process is picked up.
type EnvToken string

func (e EnvToken) Token(context.Context) (string, error) {
	return os.Getenv(string(e)), nil
}

type tokenSourceProvider struct {
	source oauth2.TokenSource
}

// TokenSource adapts an oauth2.TokenSource into a CredentialProvider.
func TokenSource(source oauth2.TokenSource) CredentialProvider {
	return tokenSourceProvider{source: source}
}

func (p tokenSourceProvider) Token(context.Context) (string, error) {
	if p.source == nil {
		return "", nil
	}
	token, err := p.source.Token()
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

type bearerTransport struct {
	base        http.RoundTripper
	credentials CredentialProvider
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.credentials == nil {
		return t.base.RoundTrip(req)
	}
	token, err := t.credentials.Token(req.Context())
	if err != nil {
		return nil, err
	}
	if token == "" {
		return t.base.RoundTrip(req)
	}
	// RoundTrippers must not mutate the caller's request.
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(clone)
}
