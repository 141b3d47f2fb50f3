package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPGetWithAuth performs a single GET (no retry) and returns the body.
// The status code is translated into an error kind:
// 401/403: ErrAuth, 404: ErrNotFound, other 4xx: ErrQuery, 5xx and transport errors: ErrNetwork
func HTTPGetWithAuth(ctx context.Context, client *http.Client, url, authName, authPswd, authToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, Wrap(ErrQuery, fmt.Errorf("HTTPGet: %w", err))
	}
	resp, err := doWithAuth(client, req, authName, authPswd, authToken)
	if err != nil {
		return nil, TransportError(ErrNetwork, fmt.Errorf("HTTPGet: %w", err))
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Wrap(ErrNetwork, fmt.Errorf("HTTPGet.ReadAll: %w", err))
	}
	if err := StatusError(resp.StatusCode, resp.Status, body); err != nil {
		return nil, fmt.Errorf("HTTPGet: %w", err)
	}
	return body, nil
}

// StatusError returns an error tagged with the kind corresponding to the http status (nil for 2xx)
func StatusError(code int, status string, body []byte) error {
	if code >= 200 && code < 300 {
		return nil
	}
	if len(body) > 512 {
		body = body[:512]
	}
	err := fmt.Errorf("%s: %s", status, body)
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return Wrap(ErrAuth, err)
	case code == http.StatusNotFound:
		return Wrap(ErrNotFound, err)
	case code >= 400 && code < 500:
		return Wrap(ErrQuery, err)
	}
	return Wrap(ErrNetwork, err)
}

func doWithAuth(client *http.Client, req *http.Request, authName, authPswd, authToken string) (*http.Response, error) {
	if authName != "" {
		req.SetBasicAuth(authName, authPswd)
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return client.Do(req)
}
