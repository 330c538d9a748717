package session

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// CookieName is the name of the opaque session id cookie.
const CookieName = "sid"

// cookieSecure controls whether the session cookie is marked Secure.
var cookieSecure = true

// SetCookieSecurity allows main to relax the Secure flag for local development.
func SetCookieSecurity(secure bool) { cookieSecure = secure }

// NewID returns a fresh session id.
func NewID() string { return uuid.NewString() }

// SetCookie writes the session id cookie.
func SetCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ReadCookie returns the session id from the request, if a well-formed one is present.
func ReadCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return "", false
	}
	return c.Value, true
}

// ClearCookie expires the session id cookie.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

type ctxKeySession struct{}

type contextValue struct {
	handle *Handle
	state  State
}

// WithState stores the handle and its loaded state in ctx.
func WithState(ctx context.Context, h *Handle, st State) context.Context {
	return context.WithValue(ctx, ctxKeySession{}, contextValue{handle: h, state: st})
}

// FromContext returns the handle and state stored by WithState.
func FromContext(ctx context.Context) (*Handle, State, bool) {
	v, ok := ctx.Value(ctxKeySession{}).(contextValue)
	if !ok {
		return nil, State{}, false
	}
	return v.handle, v.state, true
}
