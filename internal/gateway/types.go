package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
)

// ErrSessionExpired is returned when a 401 could not be recovered by a token
// refresh. The session has already been cleared when it is returned.
var ErrSessionExpired = errors.New("session expired")

// TokenSource is the gateway's view of the session store.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	UpdateToken(ctx context.Context, accessToken string) error
	ClearAuth(ctx context.Context) error
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("request failed with status code %d", e.StatusCode)
}

// UserMessage picks the text shown to the user for err: the backend's message
// when there is one, the error text for other HTTP failures, and fallback for
// transport failures or a nil error.
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return apiErr.Error()
	}
	return fallback
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// envelope models the backend's {status, data} response wrapper.
type envelope struct {
	Status  json.RawMessage `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// Request describes one call to the backend. Path is relative to the base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   Body
}

// Body encodes a request payload. Bodies are encoded once so a replayed
// request sends identical bytes.
type Body interface {
	encode() (contentType string, data []byte, err error)
}

type jsonBody struct{ v any }

// JSON wraps v as a JSON request body.
func JSON(v any) Body { return jsonBody{v: v} }

func (b jsonBody) encode() (string, []byte, error) {
	data, err := json.Marshal(b.v)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}
	return "application/json", data, nil
}

// File is one file part of a multipart body.
type File struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

type multipartBody struct {
	fields map[string][]string
	files  []File
}

// Multipart builds a multipart/form-data body. Repeated values of a field are
// sent as repeated parts.
func Multipart(fields map[string][]string, files ...File) Body {
	return multipartBody{fields: fields, files: files}
}

func (b multipartBody) encode() (string, []byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(b.fields))
	for k := range b.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range b.fields[k] {
			if err := w.WriteField(k, v); err != nil {
				return "", nil, fmt.Errorf("failed to write field %s: %w", k, err)
			}
		}
	}

	for _, f := range b.files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Name))
		ct := f.ContentType
		if ct == "" {
			ct = http.DetectContentType(f.Data)
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return "", nil, fmt.Errorf("failed to create part %s: %w", f.Field, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return "", nil, fmt.Errorf("failed to write part %s: %w", f.Field, err)
		}
	}

	if err := w.Close(); err != nil {
		return "", nil, fmt.Errorf("failed to close multipart body: %w", err)
	}
	return w.FormDataContentType(), buf.Bytes(), nil
}
