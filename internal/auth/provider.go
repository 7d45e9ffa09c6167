// Package auth exchanges OAuth2 client credentials for short-lived bearer
// tokens used against the image-editing API.
package auth

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// Credential identifies one OAuth2 client.
type Credential struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// Token is a short-lived bearer token.
type Token struct {
	AccessToken string
	Expiry      time.Time
}

// Error reports a failed token exchange.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("token exchange failed: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Provider acquires tokens via the OAuth2 client-credentials flow.
type Provider struct {
	cred Credential
}

// NewProvider creates a Provider for the given credential.
func NewProvider(cred Credential) *Provider {
	return &Provider{cred: cred}
}

// AcquireToken performs a single token exchange. No retry, no caching: each
// pipeline run acquires a fresh token and callers decide whether to retry the
// whole run.
func (p *Provider) AcquireToken(ctx context.Context) (Token, error) {
	cfg := clientcredentials.Config{
		ClientID:     p.cred.ClientID,
		ClientSecret: p.cred.ClientSecret,
		TokenURL:     p.cred.TokenURL,
		Scopes:       p.cred.Scopes,
	}

	tok, err := cfg.Token(ctx)
	if err != nil {
		return Token{}, &Error{Err: err}
	}
	if tok.AccessToken == "" {
		return Token{}, &Error{Err: fmt.Errorf("token endpoint returned empty access token")}
	}

	return Token{
		AccessToken: tok.AccessToken,
		Expiry:      tok.Expiry,
	}, nil
}
