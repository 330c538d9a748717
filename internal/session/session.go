// Package session holds the authenticated state of one browser session and
// the narrow set of actions allowed to change it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"diesel-manager-web/internal/model"
	"diesel-manager-web/internal/store"
)

// ErrEmptyAccessToken is returned by SetAuth when no access token is given;
// an authenticated session must always carry one.
var ErrEmptyAccessToken = errors.New("access token is required")

// State is a read-only snapshot of a session.
type State struct {
	IsAuthenticated bool
	AccessToken     string
	RefreshToken    string
	User            *model.UserSummary
	Profile         *model.UserProfile
}

// Role returns the profile role once a profile is loaded, and the login
// user's role before that. An unrecognized profile role stays unknown.
func (s State) Role() model.Role {
	if s.Profile != nil {
		return s.Profile.Role
	}
	if s.User != nil {
		return s.User.Role
	}
	return model.RoleUnknown
}

// DisplayName returns the best available name for the logged-in user.
func (s State) DisplayName() string {
	if s.Profile != nil && s.Profile.Name != "" {
		return s.Profile.Name
	}
	if s.User != nil {
		return s.User.Name
	}
	return ""
}

// Auth is the payload of a successful login.
type Auth struct {
	AccessToken  string
	RefreshToken string
	User         model.UserSummary
}

// Manager exposes the session actions on top of a persistent store.
type Manager struct {
	store store.Store
}

// NewManager creates a session manager backed by s.
func NewManager(s store.Store) *Manager {
	return &Manager{store: s}
}

// Load returns the state for id. Unknown ids yield the logged-out state.
func (m *Manager) Load(ctx context.Context, id string) (State, error) {
	rec, err := m.store.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return State{}, nil
	}
	if err != nil {
		return State{}, err
	}
	return fromRecord(rec)
}

// SetAuth marks the session authenticated and stores both tokens and the user.
func (m *Manager) SetAuth(ctx context.Context, id string, auth Auth) error {
	if auth.AccessToken == "" {
		return ErrEmptyAccessToken
	}
	userJSON, err := json.Marshal(auth.User)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	return m.store.UpdateSession(ctx, id, func(rec *model.SessionRecord) error {
		rec.IsAuthenticated = true
		rec.AccessToken = auth.AccessToken
		rec.RefreshToken = auth.RefreshToken
		rec.UserJSON = string(userJSON)
		return nil
	})
}

// UpdateToken replaces the access token only.
func (m *Manager) UpdateToken(ctx context.Context, id, accessToken string) error {
	if accessToken == "" {
		return ErrEmptyAccessToken
	}
	return m.store.UpdateSession(ctx, id, func(rec *model.SessionRecord) error {
		rec.AccessToken = accessToken
		return nil
	})
}

// ClearAuth resets the session to its logged-out defaults.
func (m *Manager) ClearAuth(ctx context.Context, id string) error {
	return m.store.UpdateSession(ctx, id, func(rec *model.SessionRecord) error {
		rec.IsAuthenticated = false
		rec.AccessToken = ""
		rec.RefreshToken = ""
		rec.UserJSON = ""
		rec.ProfileJSON = ""
		return nil
	})
}

// SetProfile stores the extended profile fetched after login. Profiles with
// a role outside the enum are kept but logged; they match no route.
func (m *Manager) SetProfile(ctx context.Context, id string, profile model.UserProfile) error {
	if !profile.Role.Valid() {
		logrus.WithField("employee_number", profile.EmployeeNumber).Warn("profile has unrecognized role; access will be denied")
	}
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	return m.store.UpdateSession(ctx, id, func(rec *model.SessionRecord) error {
		rec.ProfileJSON = string(profileJSON)
		return nil
	})
}

// Forget deletes the session record entirely.
func (m *Manager) Forget(ctx context.Context, id string) error {
	return m.store.DeleteSession(ctx, id)
}

// Handle binds the manager to one session id.
func (m *Manager) Handle(id string) *Handle {
	return &Handle{m: m, id: id}
}

func fromRecord(rec model.SessionRecord) (State, error) {
	st := State{
		IsAuthenticated: rec.IsAuthenticated && rec.AccessToken != "",
		AccessToken:     rec.AccessToken,
		RefreshToken:    rec.RefreshToken,
	}
	if rec.UserJSON != "" {
		var u model.UserSummary
		if err := json.Unmarshal([]byte(rec.UserJSON), &u); err != nil {
			return State{}, fmt.Errorf("failed to decode stored user: %w", err)
		}
		st.User = &u
	}
	if rec.ProfileJSON != "" {
		var p model.UserProfile
		if err := json.Unmarshal([]byte(rec.ProfileJSON), &p); err != nil {
			return State{}, fmt.Errorf("failed to decode stored profile: %w", err)
		}
		st.Profile = &p
	}
	return st, nil
}
