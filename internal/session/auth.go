package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// Auth endpoint paths.
const (
	PathToken    = "/auth/token"
	PathMFA      = "/auth/mfa"
	PathValidate = "/auth/validate"
	PathLogout   = "/auth/logout"
)

// LoginResult is the backend answer to a credential or MFA step.
type LoginResult struct {
	Username   string
	RequireMFA bool
}

// AuthError is a rejected auth request.
type AuthError struct {
	StatusCode int
	Detail     string
}

func (e *AuthError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("authentication failed with status %d", e.StatusCode)
}

// AuthClient is the backend auth surface the store drives.
type AuthClient interface {
	Login(ctx context.Context, username, password string) (LoginResult, error)
	VerifyMFA(ctx context.Context, username, code string) (LoginResult, error)
	Validate(ctx context.Context) (string, error)
	Logout(ctx context.Context) error
}

// HTTPAuth talks to the backend auth endpoints. The session cookie lives in
// the HTTP client's jar.
type HTTPAuth struct {
	base       *url.URL
	httpClient *http.Client
}

// NewHTTPAuth creates an auth client for the API rooted at baseURL.
func NewHTTPAuth(baseURL string, httpClient *http.Client) (*HTTPAuth, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("session: invalid base URL: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPAuth{base: u, httpClient: httpClient}, nil
}

// Login posts the credentials as a form.
func (a *HTTPAuth) Login(ctx context.Context, username, password string) (LoginResult, error) {
	form := url.Values{"username": {username}, "password": {password}}
	body, err := a.do(ctx, http.MethodPost, PathToken, "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	if err != nil {
		return LoginResult{}, err
	}
	return loginResult(body, username), nil
}

// VerifyMFA posts the one-time code for username.
func (a *HTTPAuth) VerifyMFA(ctx context.Context, username, code string) (LoginResult, error) {
	payload, err := json.Marshal(map[string]string{"username": username, "mfa_code": code})
	if err != nil {
		return LoginResult{}, fmt.Errorf("session: encode mfa request: %w", err)
	}
	body, err := a.do(ctx, http.MethodPost, PathMFA, "application/json", bytes.NewReader(payload))
	if err != nil {
		return LoginResult{}, err
	}
	res := loginResult(body, username)
	res.RequireMFA = false
	return res, nil
}

// Validate asks the backend whether the current cookie is a live session.
func (a *HTTPAuth) Validate(ctx context.Context) (string, error) {
	body, err := a.do(ctx, http.MethodGet, PathValidate, "", nil)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(body, "username").String(), nil
}

// Logout ends the session on the backend.
func (a *HTTPAuth) Logout(ctx context.Context) error {
	_, err := a.do(ctx, http.MethodGet, PathLogout, "", nil)
	return err
}

func (a *HTTPAuth) do(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	ref := &url.URL{Path: path}
	req, err := http.NewRequestWithContext(ctx, method, a.base.ResolveReference(ref).String(), body)
	if err != nil {
		return nil, fmt.Errorf("session: build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("session: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &AuthError{StatusCode: resp.StatusCode, Detail: gjson.GetBytes(data, "detail").String()}
	}
	return data, nil
}

func loginResult(body []byte, fallbackUser string) LoginResult {
	res := LoginResult{
		Username:   gjson.GetBytes(body, "username").String(),
		RequireMFA: gjson.GetBytes(body, "requireMFA").Bool(),
	}
	if res.Username == "" {
		res.Username = fallbackUser
	}
	return res
}
