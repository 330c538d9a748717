package session

import "context"

// Handle is a session manager scoped to one session id. It satisfies the
// token source the API gateway reads and refreshes.
type Handle struct {
	m  *Manager
	id string
}

// ID returns the session id.
func (h *Handle) ID() string { return h.id }

// State loads the current session state.
func (h *Handle) State(ctx context.Context) (State, error) {
	return h.m.Load(ctx, h.id)
}

// AccessToken returns the stored access token, or "" when logged out.
func (h *Handle) AccessToken(ctx context.Context) (string, error) {
	st, err := h.m.Load(ctx, h.id)
	if err != nil {
		return "", err
	}
	return st.AccessToken, nil
}

// RefreshToken returns the stored refresh token, or "" when logged out.
func (h *Handle) RefreshToken(ctx context.Context) (string, error) {
	st, err := h.m.Load(ctx, h.id)
	if err != nil {
		return "", err
	}
	return st.RefreshToken, nil
}

// UpdateToken stores a refreshed access token.
func (h *Handle) UpdateToken(ctx context.Context, accessToken string) error {
	return h.m.UpdateToken(ctx, h.id, accessToken)
}

// ClearAuth logs the session out.
func (h *Handle) ClearAuth(ctx context.Context) error {
	return h.m.ClearAuth(ctx, h.id)
}
