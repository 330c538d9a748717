package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memTokens is an in-memory TokenSource.
type memTokens struct {
	mu      sync.Mutex
	access  string
	refresh string
	cleared int
}

func (m *memTokens) AccessToken(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access, nil
}

func (m *memTokens) RefreshToken(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refresh, nil
}

func (m *memTokens) UpdateToken(_ context.Context, tok string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access = tok
	return nil
}

func (m *memTokens) ClearAuth(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access, m.refresh = "", ""
	m.cleared++
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestDo_AttachesBearerAndUnwrapsEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "/tanks", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "success",
			"data":   []map[string]any{{"id": 1, "name": "Main"}},
		})
	}))
	defer server.Close()

	c := New(server.URL, time.Second, "")
	var out []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	err := c.Do(context.Background(), &memTokens{access: "tok-1"}, Request{
		Method: http.MethodGet,
		Path:   "/tanks",
		Query:  map[string][]string{"page": {"2"}},
	}, &out)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Main", out[0].Name)
}

func TestDo_AnonymousOmitsAuthorization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusUnauthorized, map[string]any{"status": "error", "message": "Invalid credentials"})
	}))
	defer server.Close()

	c := New(server.URL, time.Second, "")
	err := c.Do(context.Background(), nil, Request{Method: http.MethodPost, Path: "/auth/login", Body: JSON(map[string]string{"employee_number": "E1"})}, nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Invalid credentials", UserMessage(err, "Login failed"))
}

func TestDo_RefreshesOnceAndReplays(t *testing.T) {
	var refreshes, calls int32
	var bodies []string
	var mu sync.Mutex

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == RefreshPath {
			atomic.AddInt32(&refreshes, 1)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "refresh-1", body["refreshToken"])
			assert.Empty(t, r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": map[string]string{"accessToken": "fresh"}})
			return
		}
		atomic.AddInt32(&calls, 1)
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "expired"})
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"status": "success", "data": map[string]any{"id": 7}})
	}))
	defer server.Close()

	tokens := &memTokens{access: "stale", refresh: "refresh-1"}
	c := New(server.URL, time.Second, "")
	var out struct {
		ID int `json:"id"`
	}
	err := c.Do(context.Background(), tokens, Request{
		Method: http.MethodPost,
		Path:   "/diesel-consumption/create",
		Body:   JSON(map[string]any{"plate_number": "ABC123", "quantity": 40}),
	}, &out)

	require.NoError(t, err)
	assert.Equal(t, 7, out.ID)
	assert.EqualValues(t, 1, atomic.LoadInt32(&refreshes))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1], "replayed body must match the original")
	assert.Equal(t, "fresh", tokens.access)
	assert.Zero(t, tokens.cleared)
}

func TestDo_SecondUnauthorizedClearsSessionWithoutSecondRefresh(t *testing.T) {
	var refreshes, calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == RefreshPath {
			atomic.AddInt32(&refreshes, 1)
			writeJSON(w, http.StatusOK, map[string]any{"data": map[string]string{"accessToken": "still-bad"}})
			return
		}
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "nope"})
	}))
	defer server.Close()

	tokens := &memTokens{access: "stale", refresh: "refresh-1"}
	c := New(server.URL, time.Second, "")
	err := c.Do(context.Background(), tokens, Request{Method: http.MethodGet, Path: "/auth/profile"}, nil)

	require.ErrorIs(t, err, ErrSessionExpired)
	assert.EqualValues(t, 1, atomic.LoadInt32(&refreshes))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	assert.Equal(t, 1, tokens.cleared)
	assert.Empty(t, tokens.access)
}

func TestDo_RefreshFailureClearsSession(t *testing.T) {
	tests := []struct {
		name    string
		refresh string
		handler http.HandlerFunc
	}{
		{
			name:    "refresh rejected",
			refresh: "refresh-1",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == RefreshPath {
					writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "refresh expired"})
					return
				}
				writeJSON(w, http.StatusUnauthorized, nil)
			},
		},
		{
			name:    "no refresh token",
			refresh: "",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == RefreshPath {
					t.Error("refresh endpoint must not be called without a refresh token")
				}
				writeJSON(w, http.StatusUnauthorized, nil)
			},
		},
		{
			name:    "refresh without token in body",
			refresh: "refresh-1",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == RefreshPath {
					writeJSON(w, http.StatusOK, map[string]any{"data": map[string]string{}})
					return
				}
				writeJSON(w, http.StatusUnauthorized, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			tokens := &memTokens{access: "stale", refresh: tt.refresh}
			err := New(server.URL, time.Second, "").Do(context.Background(), tokens, Request{Method: http.MethodGet, Path: "/tanks"}, nil)
			require.ErrorIs(t, err, ErrSessionExpired)
			assert.Equal(t, 1, tokens.cleared)
		})
	}
}

func TestDo_PassesThroughForbiddenAndServerErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    any
		wantMsg string
	}{
		{"forbidden", http.StatusForbidden, map[string]any{"message": "Insufficient role"}, "Insufficient role"},
		{"server error with message", http.StatusInternalServerError, map[string]any{"message": "Tank is empty"}, "Tank is empty"},
		{"server error without body", http.StatusBadGateway, nil, "request failed with status code 502"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.body == nil {
					w.WriteHeader(tt.status)
					return
				}
				writeJSON(w, tt.status, tt.body)
			}))
			defer server.Close()

			tokens := &memTokens{access: "tok", refresh: "r"}
			err := New(server.URL, time.Second, "").Do(context.Background(), tokens, Request{Method: http.MethodGet, Path: "/reports"}, nil)

			assert.True(t, IsStatus(err, tt.status))
			assert.Equal(t, tt.wantMsg, UserMessage(err, "fallback"))
			assert.Zero(t, tokens.cleared)
		})
	}
}

func TestDo_MultipartBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, []string{"J1", "other"}, r.MultipartForm.Value["job_numbers"])
		assert.Equal(t, "E100", r.FormValue("employee_number"))
		f, hdr, err := r.FormFile("photo")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "meter.jpg", hdr.Filename)
		assert.Equal(t, "image/jpeg", hdr.Header.Get("Content-Type"))
		writeJSON(w, http.StatusOK, map[string]any{"status": true, "data": nil})
	}))
	defer server.Close()

	body := Multipart(map[string][]string{
		"employee_number": {"E100"},
		"job_numbers":     {"J1", "other"},
	}, File{Field: "photo", Name: "meter.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}})

	err := New(server.URL, time.Second, "").Do(context.Background(), &memTokens{access: "t"}, Request{Method: http.MethodPost, Path: "/diesel-receiving/create", Body: body}, nil)
	require.NoError(t, err)
}

func TestDo_EnvelopeFailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": false, "message": "Receipt already exists"})
	}))
	defer server.Close()

	var out map[string]any
	err := New(server.URL, time.Second, "").Do(context.Background(), nil, Request{Method: http.MethodGet, Path: "/x"}, &out)
	assert.Equal(t, "Receipt already exists", UserMessage(err, "fallback"))
}

func TestDo_TransportErrorUsesFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	err := New(url, time.Second, "").Do(context.Background(), nil, Request{Method: http.MethodGet, Path: "/tanks"}, nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "/tanks"))
	assert.False(t, errors.Is(err, ErrSessionExpired))
	assert.Equal(t, "Failed to load tanks", UserMessage(err, "Failed to load tanks"))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "fallback", UserMessage(nil, "fallback"))
	assert.Equal(t, "fallback", UserMessage(errors.New("dial tcp: refused"), "fallback"))
	assert.Equal(t, "bad plate", UserMessage(&APIError{StatusCode: 400, Message: "bad plate"}, "fallback"))
}

func TestNew_TransportKeepsDefaults(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://backend.local/api/v1/tanks", nil)
	require.NoError(t, err)

	direct := New("http://backend.local/api/v1", 0, "").client
	assert.Equal(t, 30*time.Second, direct.Timeout)
	tr, ok := direct.Transport.(*http.Transport)
	require.True(t, ok)
	assert.NotNil(t, tr.Proxy, "environment proxy settings apply")
	assert.NotZero(t, tr.TLSHandshakeTimeout)
	assert.NotZero(t, tr.IdleConnTimeout)
	assert.NotNil(t, tr.DialContext)

	proxied := New("http://backend.local/api/v1", time.Second, "http://proxy.local:3128").client
	tr, ok = proxied.Transport.(*http.Transport)
	require.True(t, ok)
	proxyURL, err := tr.Proxy(req)
	require.NoError(t, err)
	assert.Equal(t, "proxy.local:3128", proxyURL.Host)
	assert.NotZero(t, tr.TLSHandshakeTimeout)
}
