// Package api is the HTTP client for the devark backend: session uploads
// and the CLI auth flow.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/DevArk-AI/devark/internal/upload"
	"github.com/DevArk-AI/devark/pkg/models"
)

// DefaultBaseURL is the production backend.
const DefaultBaseURL = "https://api.devark.ai"

// TokenSource supplies the bearer token, or "" when logged out.
type TokenSource interface {
	GetToken() (string, error)
}

// Client talks to the backend. All requests carry the bearer token when one
// is available.
type Client struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
}

// NewClient creates a client. tokens may be nil for unauthenticated use.
func NewClient(baseURL string, tokens TokenSource) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		tokens:  tokens,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// UploadBatch posts one session batch. Satisfies upload.Sender.
func (c *Client) UploadBatch(ctx context.Context, payload upload.BatchPayload) (*models.UploadResult, error) {
	var result models.UploadResult
	if err := c.do(ctx, http.MethodPost, "/cli/sessions", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AuthSession is the response to a CLI auth session request. The backend
// returns either a polling token or a session ID depending on version.
type AuthSession struct {
	AuthURL   string `json:"authUrl"`
	Token     string `json:"token,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// PollToken returns whichever polling identifier the backend issued.
func (a AuthSession) PollToken() string {
	if a.Token != "" {
		return a.Token
	}
	return a.SessionID
}

// CreateAuthSession starts a browser login. The returned AuthURL already
// carries the source marker the backend expects from IDE-side logins.
func (c *Client) CreateAuthSession(ctx context.Context) (*AuthSession, error) {
	var session AuthSession
	if err := c.do(ctx, http.MethodPost, "/api/auth/cli/session", nil, &session); err != nil {
		return nil, err
	}
	if session.AuthURL != "" {
		u, err := url.Parse(session.AuthURL)
		if err != nil {
			return nil, fmt.Errorf("parse auth url: %w", err)
		}
		q := u.Query()
		q.Set("source", "ide_extension")
		u.RawQuery = q.Encode()
		session.AuthURL = u.String()
	}
	return &session, nil
}

// AuthCompletion is the result of polling the completion endpoint.
type AuthCompletion struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId,omitempty"`
	Token   string `json:"token,omitempty"`
}

// CompleteAuth polls for login completion. A 404 from the backend means the
// user has not finished the browser flow yet and maps to success=false.
func (c *Client) CompleteAuth(ctx context.Context, pollToken string) (*AuthCompletion, error) {
	path := "/api/auth/cli/complete?token=" + url.QueryEscape(pollToken)
	var completion AuthCompletion
	err := c.do(ctx, http.MethodGet, path, nil, &completion)
	if err != nil {
		var httpErr *StatusError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return &AuthCompletion{Success: false}, nil
		}
		return nil, err
	}
	return &completion, nil
}

// AuthVerification is the verify endpoint's response. A present user implies
// a valid token even when the backend omits the valid flag.
type AuthVerification struct {
	Valid bool           `json:"valid,omitempty"`
	User  map[string]any `json:"user,omitempty"`
}

// IsValid reports whether the token checked out.
func (v AuthVerification) IsValid() bool {
	return v.Valid || len(v.User) > 0
}

// VerifyAuth checks the stored token against the backend.
func (c *Client) VerifyAuth(ctx context.Context) (*AuthVerification, error) {
	var verification AuthVerification
	if err := c.do(ctx, http.MethodGet, "/api/auth/cli/verify", nil, &verification); err != nil {
		return nil, err
	}
	return &verification, nil
}

// StatusError is a non-2xx backend response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, err := c.tokens.GetToken()
		if err == nil && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Debug().Int("status", resp.StatusCode).Str("path", path).Msg("Backend request failed")
		return &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
