package shared

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/airbusgeo/aoifetch/service"
)

func tokenServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Error(err)
		}
		if r.Form.Get("grant_type") != "password" || r.Form.Get("client_id") != CopernicusClientID {
			t.Errorf("unexpected form: %v", r.Form)
		}
		if r.Form.Get("username") != "user" || r.Form.Get("password") != "secret" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"invalid_grant","error_description":"Invalid user credentials"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"token-1","expires_in":600,"refresh_token":"refresh-1","token_type":"Bearer"}`)
	}))
}

func TestSessionLogin(t *testing.T) {
	srv := tokenServer(t)
	defer srv.Close()

	s := NewSession(srv.URL, CopernicusClientID, "user", "secret", srv.Client())
	token, err := s.AccessToken(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if token != "token-1" {
		t.Errorf("expecting token-1, got %s", token)
	}
}

func TestSessionRejected(t *testing.T) {
	srv := tokenServer(t)
	defer srv.Close()

	s := NewSession(srv.URL, CopernicusClientID, "user", "wrong", srv.Client())
	if err := s.Login(context.Background()); !errors.Is(err, service.ErrAuth) {
		t.Errorf("expecting ErrAuth, got %v", err)
	}
	s = NewSession(srv.URL, CopernicusClientID, "", "", srv.Client())
	if err := s.Login(context.Background()); !errors.Is(err, service.ErrAuth) {
		t.Errorf("expecting ErrAuth, got %v", err)
	}
}
