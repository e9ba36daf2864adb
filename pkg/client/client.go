// Package client is a Go consumer of the procurement workflow API. It
// wraps every call in a session manager that injects the bearer token,
// refreshes an expired session at most once per call, and replays the
// failed call exactly once.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// Client talks to the remote authority. All exposed operations go
// through do, so every call gets bearer injection and the single
// refresh-and-retry described on Do.
type Client struct {
	baseURL string
	http    *http.Client
	store   *CredentialStore
	refresh singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New builds a Client for the authority at baseURL. The store may be
// pre-populated with a persisted credential from an earlier session.
func New(baseURL string, store *CredentialStore, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		store:   store,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store exposes the credential store, for callers that need to check
// Authenticated or observe the cached profile.
func (c *Client) Store() *CredentialStore {
	return c.store
}

// FileURL resolves a possibly relative file reference returned by the
// authority against the authority's origin.
func (c *Client) FileURL(ref string) string {
	if ref == "" {
		return ""
	}
	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		return ref
	}
	return c.baseURL + "/" + strings.TrimLeft(ref, "/")
}

// envelope is the standard response wrapper of the remote authority.
// Data stays raw so each caller can decode into its own type.
type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Code       string          `json:"code"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
}

// call is one outbound request. The body is a byte slice, not a
// reader, so the request can be replayed after a refresh.
type call struct {
	method      string
	path        string
	body        []byte
	contentType string
}

func jsonCall(method, path string, payload interface{}) (call, error) {
	cl := call{method: method, path: path}
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return call{}, err
		}
		cl.body = body
		cl.contentType = "application/json"
	}
	return cl, nil
}

// do executes a call with bearer injection. On a 401 it performs at
// most one refresh exchange and replays the call exactly once; the
// credential store is updated before the replay is dispatched. A
// second 401, or a failed refresh, clears the store and surfaces
// ErrSessionExpired. Concurrent failing calls share one refresh via
// single-flight. Non-auth failures pass through unmodified.
func (c *Client) do(ctx context.Context, cl call, out interface{}) error {
	retried := false
	for {
		status, data, err := c.send(ctx, cl)
		if err != nil {
			return &APIError{Kind: KindTransportError, Message: err.Error()}
		}

		if status == http.StatusUnauthorized {
			_, refreshToken := c.store.Tokens()
			if retried || refreshToken == "" {
				c.store.Clear()
				return &APIError{Kind: KindAuthenticationExpired, StatusCode: status, Message: "authentication failed"}
			}
			if err := c.refreshSession(ctx, refreshToken); err != nil {
				return err
			}
			retried = true
			continue
		}

		return decodeResponse(status, data, out)
	}
}

// send performs one HTTP round trip with the current access token.
func (c *Client) send(ctx context.Context, cl call) (int, []byte, error) {
	var body io.Reader
	if cl.body != nil {
		body = bytes.NewReader(cl.body)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return 0, nil, err
	}
	if cl.contentType != "" {
		req.Header.Set("Content-Type", cl.contentType)
	}
	if access, _ := c.store.Tokens(); access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, data, nil
}

// refreshSession exchanges the refresh token for a fresh pair and
// updates the store. Concurrent callers collapse onto a single
// exchange. A failed exchange ends the session.
func (c *Client) refreshSession(ctx context.Context, refreshToken string) error {
	_, err, _ := c.refresh.Do("refresh", func() (interface{}, error) {
		// Another caller may have rotated the tokens already
		_, current := c.store.Tokens()
		if current != "" && current != refreshToken {
			return nil, nil
		}

		cl, err := jsonCall(http.MethodPost, "/api/auth/refresh", map[string]string{"refresh": current})
		if err != nil {
			return nil, err
		}
		status, data, err := c.send(ctx, cl)
		if err != nil {
			return nil, &APIError{Kind: KindTransportError, Message: err.Error()}
		}

		var pair struct {
			Access  string `json:"access"`
			Refresh string `json:"refresh"`
		}
		if err := decodeResponse(status, data, &pair); err != nil || pair.Access == "" {
			c.store.Clear()
			return nil, &APIError{Kind: KindAuthenticationExpired, StatusCode: status, Message: "refresh exchange failed"}
		}

		// The authority rotates refresh tokens; missing one means keep the old
		if pair.Refresh == "" {
			pair.Refresh = current
		}
		c.store.UpdateTokens(pair.Access, pair.Refresh)
		return nil, nil
	})
	return err
}

// decodeResponse handles both the standard envelope and bare payloads.
func decodeResponse(status int, data []byte, out interface{}) error {
	var env envelope
	enveloped := json.Unmarshal(data, &env) == nil && env.Status != ""

	if status >= 400 {
		if enveloped {
			return classify(status, env.Code, env.Error)
		}
		return classify(status, "", strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	payload := data
	if enveloped && env.Data != nil {
		payload = env.Data
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &APIError{Kind: KindTransportError, StatusCode: status, Message: fmt.Sprintf("malformed response: %v", err)}
	}
	return nil
}
