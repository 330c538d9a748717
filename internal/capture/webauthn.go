package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"diesel-manager-web/internal/backend"
)

// ErrNotVerified is returned when the backend rejects an assertion.
var ErrNotVerified = errors.New("signature not verified")

// Verifier is the backend side of a WebAuthn ceremony.
type Verifier interface {
	AuthenticationOptions(ctx context.Context) (backend.AuthenticationOptions, error)
	VerifyAuthentication(ctx context.Context, a backend.Assertion) (bool, error)
}

// Authenticator produces an assertion for a challenge, e.g. the platform
// fingerprint reader driven from the browser.
type Authenticator interface {
	GetAssertion(ctx context.Context, req AssertionRequest) (backend.Assertion, error)
}

// AssertionRequest is the decoded challenge handed to the authenticator.
type AssertionRequest struct {
	Challenge        []byte        `json:"challenge"`
	RPID             string        `json:"rpId,omitempty"`
	Timeout          time.Duration `json:"-"`
	TimeoutMillis    int           `json:"timeout,omitempty"`
	UserVerification string        `json:"userVerification,omitempty"`
	AllowCredentials []string      `json:"allowCredentials,omitempty"`
}

// Result reports a capture. Token is an opaque marker standing in for a
// handwritten signature; it carries no credential material.
type Result struct {
	Verified bool   `json:"verified"`
	Token    string `json:"token,omitempty"`
}

// WebAuthn runs signature captures against a Verifier.
type WebAuthn struct {
	verifier Verifier
	newToken func() string
}

// NewWebAuthn creates a WebAuthn widget.
func NewWebAuthn(v Verifier) *WebAuthn {
	return &WebAuthn{verifier: v, newToken: func() string { return uuid.NewString() }}
}

// Begin fetches and decodes a challenge.
func (w *WebAuthn) Begin(ctx context.Context) (AssertionRequest, error) {
	opts, err := w.verifier.AuthenticationOptions(ctx)
	if err != nil {
		return AssertionRequest{}, fmt.Errorf("failed to get authentication options: %w", err)
	}
	challenge, err := DecodeChallenge(opts.Challenge)
	if err != nil {
		return AssertionRequest{}, err
	}
	req := AssertionRequest{
		Challenge:        challenge,
		RPID:             opts.RPID,
		TimeoutMillis:    opts.Timeout,
		Timeout:          time.Duration(opts.Timeout) * time.Millisecond,
		UserVerification: opts.UserVerification,
	}
	for _, c := range opts.AllowCredentials {
		req.AllowCredentials = append(req.AllowCredentials, c.ID)
	}
	return req, nil
}

// Finish submits an assertion. A rejected assertion yields ErrNotVerified
// with an unverified Result.
func (w *WebAuthn) Finish(ctx context.Context, a backend.Assertion) (Result, error) {
	ok, err := w.verifier.VerifyAuthentication(ctx, a)
	if err != nil {
		return Result{}, fmt.Errorf("failed to verify assertion: %w", err)
	}
	if !ok {
		return Result{}, ErrNotVerified
	}
	return Result{Verified: true, Token: w.newToken()}, nil
}

// Capture runs a complete ceremony with auth.
func (w *WebAuthn) Capture(ctx context.Context, auth Authenticator) (Result, error) {
	req, err := w.Begin(ctx)
	if err != nil {
		return Result{}, err
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	a, err := auth.GetAssertion(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("authenticator failed: %w", err)
	}
	return w.Finish(ctx, a)
}

// DecodeChallenge accepts standard or URL-safe base64, padded or not.
func DecodeChallenge(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty challenge")
	}
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.StdEncoding} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, fmt.Errorf("challenge %q is not base64", s)
}
