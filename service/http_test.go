package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPGetWithAuth(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		user, pswd, ok := r.BasicAuth()
		switch {
		case r.URL.Path == "/missing":
			w.WriteHeader(http.StatusNotFound)
		case r.URL.Path == "/bad":
			w.WriteHeader(http.StatusBadRequest)
		case r.URL.Path == "/down":
			w.WriteHeader(http.StatusServiceUnavailable)
		case !ok || user != "user" || pswd != "secret":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.Write([]byte("ok"))
		}
	}))
	defer srv.Close()
	ctx := context.Background()

	body, err := HTTPGetWithAuth(ctx, nil, srv.URL+"/search", "user", "secret", "")
	if err != nil || string(body) != "ok" {
		t.Errorf("expecting ok, got %s (%v)", body, err)
	}

	tests := map[string]struct {
		path, pswd string
		kind       error
	}{
		"auth":     {"/search", "wrong", ErrAuth},
		"notfound": {"/missing", "secret", ErrNotFound},
		"query":    {"/bad", "secret", ErrQuery},
		"network":  {"/down", "secret", ErrNetwork},
	}
	for name, test := range tests {
		calls = 0
		_, err := HTTPGetWithAuth(ctx, nil, srv.URL+test.path, "user", test.pswd, "")
		if !errors.Is(err, test.kind) {
			t.Errorf("%s: expecting %v, got %v", name, test.kind, err)
		}
		if calls != 1 {
			t.Errorf("%s: expecting exactly one call, got %d", name, calls)
		}
	}
}

func TestHTTPGetUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	if _, err := HTTPGetWithAuth(context.Background(), nil, url, "", "", "token"); !errors.Is(err, ErrNetwork) {
		t.Errorf("expecting ErrNetwork, got %v", err)
	}
}
