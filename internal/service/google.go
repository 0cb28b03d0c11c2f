package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleIssuer = "https://accounts.google.com"

var ErrMissingIDToken = errors.New("token response has no id_token")

// OAuthUser is the identity returned by a provider after login.
type OAuthUser struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// IdentityProvider runs the authorization code flow against one provider.
type IdentityProvider interface {
	LoginURL(state string) string
	Exchange(ctx context.Context, code string) (OAuthUser, error)
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// GoogleProvider signs users in with Google and verifies the returned
// OpenID Connect ID token.
type GoogleProvider struct {
	cfg      *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

type googleClaims struct {
	Sub      string `json:"sub"`
	Email    string `json:"email"`
	Verified bool   `json:"email_verified"`
	Name     string `json:"name"`
	Picture  string `json:"picture"`
}

// NewGoogleProvider fetches Google's discovery document, so it needs
// network access.
func NewGoogleProvider(ctx context.Context, c GoogleConfig) (*GoogleProvider, error) {
	p, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create oidc provider: %w", err)
	}

	return &GoogleProvider{
		cfg: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
			Endpoint:     google.Endpoint,
		},
		verifier: p.Verifier(&oidc.Config{ClientID: c.ClientID}),
	}, nil
}

func (g *GoogleProvider) LoginURL(state string) string {
	return g.cfg.AuthCodeURL(state)
}

func (g *GoogleProvider) Exchange(ctx context.Context, code string) (OAuthUser, error) {
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return OAuthUser{}, fmt.Errorf("failed to exchange code: %w", err)
	}

	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return OAuthUser{}, ErrMissingIDToken
	}

	idTok, err := g.verifier.Verify(ctx, raw)
	if err != nil {
		return OAuthUser{}, fmt.Errorf("failed to verify id token: %w", err)
	}

	var claims googleClaims
	if err := idTok.Claims(&claims); err != nil {
		return OAuthUser{}, fmt.Errorf("failed to read claims: %w", err)
	}

	return OAuthUser{
		Subject:       claims.Sub,
		Email:         claims.Email,
		EmailVerified: claims.Verified,
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}
