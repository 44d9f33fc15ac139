// Package identity completes sign-in against an external OIDC provider and
// hands the obtained token to the session store. It covers deployments
// where the platform delegates authentication to a corporate IdP: the
// application drives the provider's authorization-code flow and the SDK
// only receives the resulting token through Store.SetToken.
package identity

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/hostbridge/hostbridge-go/session"
)

// Claims are the identity fields extracted from a verified ID token.
type Claims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Nonce   string `json:"nonce"`
}

// Handoff drives an OIDC authorization-code exchange and commits the
// resulting access token into a session store.
type Handoff struct {
	provider *oidc.Provider
	oauthCfg oauth2.Config
	store    *session.Store
}

// NewHandoff discovers the provider at issuer and prepares an exchange that
// will deliver tokens into store.
func NewHandoff(ctx context.Context, store *session.Store, issuer, clientID, clientSecret, redirectURL string, scopes []string) (*Handoff, error) {
	if store == nil {
		return nil, errors.New("[NewHandoff] session store is required")
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, errors.Wrap(err, "[NewHandoff] provider discovery")
	}

	return &Handoff{
		provider: provider,
		store:    store,
		oauthCfg: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       append([]string{oidc.ScopeOpenID}, scopes...),
		},
	}, nil
}

// AuthCodeURL returns the provider URL the user agent should be sent to.
// state and nonce must be unguessable values the caller checks again in
// Complete.
func (h *Handoff) AuthCodeURL(state, nonce string) string {
	return h.oauthCfg.AuthCodeURL(state, oidc.Nonce(nonce))
}

// Complete exchanges the authorization code, verifies the ID token
// (signature, audience, and the nonce bound at AuthCodeURL time), stores
// the access token in the session, and returns the verified claims. The
// session's user record is refreshed from the platform afterwards.
func (h *Handoff) Complete(ctx context.Context, code, nonce string) (*Claims, error) {
	oauthToken, err := h.oauthCfg.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, "[Handoff.Complete] code exchange")
	}

	rawIDToken, ok := oauthToken.Extra("id_token").(string)
	if !ok {
		return nil, errors.New("[Handoff.Complete] no id_token in response")
	}

	idToken, err := h.provider.Verifier(&oidc.Config{ClientID: h.oauthCfg.ClientID}).Verify(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Wrap(err, "[Handoff.Complete] id token verification")
	}

	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.Wrap(err, "[Handoff.Complete] extract claims")
	}
	if claims.Nonce != nonce {
		return nil, errors.New("[Handoff.Complete] nonce mismatch")
	}

	h.store.SetToken(oauthToken.AccessToken, true)
	if _, err := h.store.FetchUser(ctx); err != nil {
		return nil, errors.Wrap(err, "[Handoff.Complete] fetch user")
	}
	return &claims, nil
}
