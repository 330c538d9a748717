package gateway

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

	"diesel-manager-web/internal/metrics"

	log "github.com/sirupsen/logrus"
)

// RefreshPath is the backend endpoint that exchanges a refresh token for a
// new access token.
const RefreshPath = "/auth/refresh-token"

const maxResponseBytes = 8 << 20

// Client sends every backend request on behalf of a session.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a Client for the backend at baseURL. The transport starts from
// http.DefaultTransport, so without a proxy URL the environment proxy
// settings apply. An invalid proxy URL is logged and ignored.
func New(baseURL string, timeout time.Duration, proxy string) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			log.Warnf("invalid proxy URL %q: %v; backend calls will not use it", proxy, err)
		} else {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}
}

// BaseURL returns the backend root all paths are resolved against.
func (c *Client) BaseURL() string { return c.baseURL }

// Do sends req and decodes the envelope's data into out (which may be nil).
// tokens may be nil for anonymous calls such as login; with a TokenSource a
// 401 triggers one refresh and one replay of the same request.
func (c *Client) Do(ctx context.Context, tokens TokenSource, req Request, out any) error {
	var (
		contentType string
		body        []byte
	)
	if req.Body != nil {
		var err error
		contentType, body, err = req.Body.encode()
		if err != nil {
			return err
		}
	}
	return c.do(ctx, tokens, req, contentType, body, out, false)
}

func (c *Client) do(ctx context.Context, tokens TokenSource, req Request, contentType string, body []byte, out any, retried bool) error {
	var token string
	if tokens != nil {
		var err error
		if token, err = tokens.AccessToken(ctx); err != nil {
			return fmt.Errorf("failed to read access token: %w", err)
		}
	}

	status, raw, err := c.send(ctx, req.Method, req.Path, req.Query, contentType, body, token)
	if err != nil {
		metrics.ObserveBackendRequest(req.Method, 0)
		return fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	metrics.ObserveBackendRequest(req.Method, status)

	if status == http.StatusUnauthorized && tokens != nil {
		if retried {
			log.WithField("path", req.Path).Info("replayed request still unauthorized; ending session")
			return c.expire(ctx, tokens, errors.New("unauthorized after token refresh"))
		}
		if err := c.refresh(ctx, tokens); err != nil {
			return c.expire(ctx, tokens, err)
		}
		return c.do(ctx, tokens, req, contentType, body, out, true)
	}

	switch {
	case status == http.StatusForbidden:
		log.WithFields(log.Fields{"method": req.Method, "path": req.Path}).Warn("backend denied access")
	case status >= 500:
		log.WithFields(log.Fields{"method": req.Method, "path": req.Path, "status": status}).Error("backend server error")
	}

	if status < 200 || status >= 300 {
		return newAPIError(status, raw)
	}
	return decodeEnvelope(raw, out)
}

// send performs one raw HTTP exchange and returns the status and body.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, contentType string, body []byte, token string) (int, []byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, raw, nil
}

// refresh exchanges the session's refresh token for a new access token. It
// talks to the backend directly so a failing refresh can never recurse.
func (c *Client) refresh(ctx context.Context, tokens TokenSource) error {
	refreshToken, err := tokens.RefreshToken(ctx)
	if err != nil {
		metrics.ObserveTokenRefresh("error")
		return fmt.Errorf("failed to read refresh token: %w", err)
	}
	if refreshToken == "" {
		metrics.ObserveTokenRefresh("missing")
		return errors.New("no refresh token")
	}

	payload, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		metrics.ObserveTokenRefresh("error")
		return fmt.Errorf("failed to marshal refresh payload: %w", err)
	}
	status, raw, err := c.send(ctx, http.MethodPost, RefreshPath, nil, "application/json", payload, "")
	if err != nil {
		metrics.ObserveTokenRefresh("error")
		return fmt.Errorf("token refresh failed: %w", err)
	}
	if status < 200 || status >= 300 {
		metrics.ObserveTokenRefresh("rejected")
		return newAPIError(status, raw)
	}

	var data struct {
		AccessToken string `json:"accessToken"`
	}
	if err := decodeEnvelope(raw, &data); err != nil {
		metrics.ObserveTokenRefresh("error")
		return err
	}
	if data.AccessToken == "" {
		metrics.ObserveTokenRefresh("rejected")
		return errors.New("refresh response carried no access token")
	}
	if err := tokens.UpdateToken(ctx, data.AccessToken); err != nil {
		metrics.ObserveTokenRefresh("error")
		return fmt.Errorf("failed to store refreshed token: %w", err)
	}
	metrics.ObserveTokenRefresh("success")
	log.Debug("access token refreshed")
	return nil
}

func (c *Client) expire(ctx context.Context, tokens TokenSource, cause error) error {
	if err := tokens.ClearAuth(ctx); err != nil {
		log.WithError(err).Error("failed to clear session after refresh failure")
	}
	return fmt.Errorf("%w: %v", ErrSessionExpired, cause)
}

func newAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil {
		apiErr.Message = env.Message
		if apiErr.Message == "" {
			apiErr.Message = env.Error
		}
	}
	return apiErr
}

// decodeEnvelope unwraps {status, data}. Bodies without a data key are
// decoded as-is.
func decodeEnvelope(raw []byte, out any) error {
	raw = bytes.TrimSpace(raw)
	if out == nil || len(raw) == 0 {
		return nil
	}
	if raw[0] != '{' {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to unmarshal api response: %w", err)
		}
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("failed to unmarshal api response: %w", err)
	}
	if isFailureStatus(env.Status) {
		return &APIError{StatusCode: http.StatusOK, Message: env.Message}
	}
	data := env.Data
	if len(data) == 0 {
		data = raw
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal api data: %w", err)
	}
	return nil
}

// isFailureStatus reports an explicit failure marker in a 2xx envelope, either
// "status": false or "status": "error"/"fail".
func isFailureStatus(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return !b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.ToLower(s)
		return s == "error" || s == "fail" || s == "failed"
	}
	return false
}
