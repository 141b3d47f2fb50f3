package shared

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/airbusgeo/aoifetch/service"
	"github.com/airbusgeo/aoifetch/service/log"
	"golang.org/x/oauth2"
)

const (
	CopernicusTokenURL = "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"
	CopernicusClientID = "cdse-public"
)

// Session is an OAuth2 session opened with the resource owner password grant.
// The access token is refreshed when it expires.
type Session struct {
	config   oauth2.Config
	username string
	password string
	client   *http.Client

	mu sync.Mutex
	ts oauth2.TokenSource
}

// NewSession creates a session. Nothing is sent before Login.
// client may be nil (http.DefaultClient).
func NewSession(tokenURL, clientID, username, password string, client *http.Client) *Session {
	return &Session{
		config: oauth2.Config{
			ClientID: clientID,
			Endpoint: oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
		},
		username: username,
		password: password,
		client:   client,
	}
}

func (s *Session) context(ctx context.Context) context.Context {
	if s.client != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, s.client)
	}
	return ctx
}

// Login asks for a new token
func (s *Session) Login(ctx context.Context) error {
	if s.username == "" || s.password == "" {
		return service.Wrapf(service.ErrAuth, "Session.Login: missing credentials")
	}
	tctx := s.context(ctx)
	token, err := s.config.PasswordCredentialsToken(tctx, s.username, s.password)
	if err != nil {
		return fmt.Errorf("Session.Login: %w", tokenError(err))
	}
	s.mu.Lock()
	s.ts = s.config.TokenSource(tctx, token)
	s.mu.Unlock()
	log.Logger(ctx).Sugar().Debugf("logged in as %s (token expires at %s)", s.username, token.Expiry.Format("15:04:05"))
	return nil
}

// AccessToken returns a valid access token, logging in if needed
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	ts := s.ts
	s.mu.Unlock()
	if ts == nil {
		if err := s.Login(ctx); err != nil {
			return "", fmt.Errorf("AccessToken.%w", err)
		}
		return s.AccessToken(ctx)
	}
	token, err := ts.Token()
	if err != nil {
		return "", fmt.Errorf("AccessToken: %w", tokenError(err))
	}
	return token.AccessToken, nil
}

func tokenError(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil {
		switch rerr.Response.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return service.Wrap(service.ErrAuth, err)
		}
		return service.StatusError(rerr.Response.StatusCode, rerr.Response.Status, rerr.Body)
	}
	return service.TransportError(service.ErrAuth, err)
}
