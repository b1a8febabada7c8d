package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jmoiron/sqlx"
	"golang.org/x/oauth2"

	"github.com/learnly-dev/learnly/api/web"
	"github.com/learnly-dev/learnly/api/weberr"
	"github.com/learnly-dev/learnly/core/claims"
	"github.com/learnly-dev/learnly/core/user"
	"github.com/learnly-dev/learnly/random"
	"github.com/learnly-dev/learnly/validate"
)

const stateKey = "oauth_state"

type ProviderConfig struct {
	Name        string
	Client      string
	Secret      string
	URL         string
	RedirectURL string
}

type Provider struct {
	conf     *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// MakeProviders discovers the oidc endpoints of the passed providers.
func MakeProviders(ctx context.Context, cfgs []ProviderConfig) (map[string]Provider, error) {
	provs := make(map[string]Provider, len(cfgs))

	for _, cfg := range cfgs {
		prov, err := oidc.NewProvider(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("discovering provider[%s]: %w", cfg.Name, err)
		}

		provs[cfg.Name] = Provider{
			conf: &oauth2.Config{
				ClientID:     cfg.Client,
				ClientSecret: cfg.Secret,
				RedirectURL:  cfg.RedirectURL,
				Endpoint:     prov.Endpoint(),
				Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
			},
			verifier: prov.Verifier(&oidc.Config{ClientID: cfg.Client}),
		}
	}

	return provs, nil
}

func HandleOauthLogin(session *scs.SessionManager, provs map[string]Provider) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		prov, ok := provs[web.Param(r, "provider")]
		if !ok {
			return weberr.NotFound(errors.New("unknown oauth provider"))
		}

		state, err := random.StringSecure(32)
		if err != nil {
			return fmt.Errorf("generating oauth state: %w", err)
		}

		session.Put(ctx, stateKey, state)

		http.Redirect(w, r, prov.conf.AuthCodeURL(state), http.StatusTemporaryRedirect)
		return nil
	}
}

func HandleOauthCallback(db *sqlx.DB, session *scs.SessionManager, provs map[string]Provider, redirectURL string) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		prov, ok := provs[web.Param(r, "provider")]
		if !ok {
			return weberr.NotFound(errors.New("unknown oauth provider"))
		}

		state := session.PopString(ctx, stateKey)
		if state == "" || state != r.URL.Query().Get("state") {
			return weberr.BadRequest(errors.New("oauth state mismatch"))
		}

		tok, err := prov.conf.Exchange(ctx, r.URL.Query().Get("code"))
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("exchanging oauth code: %w", err))
		}

		rawID, ok := tok.Extra("id_token").(string)
		if !ok {
			return weberr.BadRequest(errors.New("token response is missing the id token"))
		}

		idTok, err := prov.verifier.Verify(ctx, rawID)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("verifying id token: %w", err))
		}

		var profile struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		}
		if err := idTok.Claims(&profile); err != nil {
			return fmt.Errorf("extracting id token claims: %w", err)
		}

		usr, err := user.FetchByEmail(ctx, db, profile.Email)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}

			now := time.Now().UTC()
			usr = user.User{
				ID:        validate.GenerateID(),
				Name:      profile.Name,
				Email:     profile.Email,
				Role:      claims.RoleUser,
				CreatedAt: now,
				UpdatedAt: now,
			}

			if err := user.Create(ctx, db, usr); err != nil {
				return fmt.Errorf("creating oauth user: %w", err)
			}
		}

		if err := login(ctx, session, usr); err != nil {
			return err
		}

		http.Redirect(w, r, redirectURL, http.StatusSeeOther)
		return nil
	}
}
