package httpbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/authsession"
)

const (
	pathLogin      = "/auth/login"
	pathVerify2FA  = "/auth/2fa/verify"
	pathBackupCode = "/auth/2fa/backup"
	pathRefresh    = "/auth/refresh"
	pathVerify     = "/auth/verify"
	pathLogout     = "/auth/logout"

	// DefaultMaxResponseBytes caps how much of a response body is read.
	DefaultMaxResponseBytes = 1 << 20

	defaultUserAgent = "authsession-httpbackend/1"
)

var (
	// ErrBaseURLRequired is returned by New when BaseURL is blank or not absolute.
	ErrBaseURLRequired = errors.New("httpbackend: absolute base URL required")
	// ErrResponseTooLarge is returned when a body exceeds MaxResponseBytes.
	ErrResponseTooLarge = errors.New("httpbackend: response too large")
	// ErrDecode is returned when a body is not the expected JSON.
	ErrDecode = errors.New("httpbackend: malformed response")
)

// StatusError reports a non-2xx answer that was not an explicit rejection.
type StatusError struct {
	Method string
	Path   string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpbackend: %s %s: unexpected status %d", e.Method, e.Path, e.Status)
}

// Config configures a Client.
type Config struct {
	// BaseURL is the scheme and host (and optional path prefix) of the service.
	BaseURL string
	// HTTPClient defaults to a client with a pooled transport. Per-call
	// deadlines come from the context.
	HTTPClient *http.Client
	// MaxResponseBytes defaults to DefaultMaxResponseBytes.
	MaxResponseBytes int64
	UserAgent        string
}

// Client talks to the authentication service. It is safe for concurrent use.
type Client struct {
	base      *url.URL
	http      *http.Client
	maxBody   int64
	userAgent string
}

var _ authsession.Backend = (*Client)(nil)

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, ErrBaseURLRequired
	}
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, ErrBaseURLRequired
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrBaseURLRequired, base.Scheme)
	}
	base.Path = strings.TrimRight(base.Path, "/")

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}
	maxBody := cfg.MaxResponseBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxResponseBytes
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	return &Client{
		base:      base,
		http:      hc,
		maxBody:   maxBody,
		userAgent: ua,
	}, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type codeRequest struct {
	Code        string `json:"code"`
	ChallengeID string `json:"challenge_id"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
	RevokeAll    bool   `json:"revoke_all"`
}

func (c *Client) Login(ctx context.Context, email, password string) (*authsession.AuthResponse, error) {
	return c.postAuth(ctx, pathLogin, loginRequest{Email: email, Password: password})
}

func (c *Client) Verify2FA(ctx context.Context, code, challengeID string) (*authsession.AuthResponse, error) {
	return c.postAuth(ctx, pathVerify2FA, codeRequest{Code: code, ChallengeID: challengeID})
}

func (c *Client) VerifyBackupCode(ctx context.Context, code, challengeID string) (*authsession.AuthResponse, error) {
	return c.postAuth(ctx, pathBackupCode, codeRequest{Code: code, ChallengeID: challengeID})
}

func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*authsession.AuthResponse, error) {
	return c.postAuth(ctx, pathRefresh, refreshRequest{RefreshToken: refreshToken})
}

// VerifyToken asks the service whether accessToken is still valid. A 401 or
// 403 with a JSON body is reported as Valid=false.
func (c *Client) VerifyToken(ctx context.Context, accessToken string) (*authsession.VerifyResponse, error) {
	req, err := c.newRequest(ctx, http.MethodGet, pathVerify, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var out authsession.VerifyResponse
	status, err := c.do(req, &out)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		out.Valid = false
	}
	return &out, nil
}

// Logout revokes refreshToken. Any non-2xx answer is an error.
func (c *Client) Logout(ctx context.Context, refreshToken string, revokeAll bool) error {
	body, err := json.Marshal(logoutRequest{RefreshToken: refreshToken, RevokeAll: revokeAll})
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, pathLogout, body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, c.maxBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: http.MethodPost, Path: pathLogout, Status: resp.StatusCode}
	}
	return nil
}

func (c *Client) postAuth(ctx context.Context, path string, payload any) (*authsession.AuthResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}

	var out authsession.AuthResponse
	status, err := c.do(req, &out)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		out.Success = false
	}
	return &out, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	u := *c.base
	u.Path = c.base.Path + path

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do sends req and decodes a JSON body into out for 2xx and 4xx answers. The
// returned status lets callers mark 4xx payloads as rejections.
func (c *Client) do(req *http.Request, out any) (int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	status := resp.StatusCode
	if status < 200 || (status > 299 && status < 400) || status > 499 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, c.maxBody))
		return status, &StatusError{Method: req.Method, Path: req.URL.Path, Status: status}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return status, err
	}
	if int64(len(data)) > c.maxBody {
		return status, ErrResponseTooLarge
	}
	if len(bytes.TrimSpace(data)) == 0 {
		if status >= 400 {
			return status, &StatusError{Method: req.Method, Path: req.URL.Path, Status: status}
		}
		return status, fmt.Errorf("%w: empty body", ErrDecode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		if status >= 400 {
			return status, &StatusError{Method: req.Method, Path: req.URL.Path, Status: status}
		}
		return status, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return status, nil
}
