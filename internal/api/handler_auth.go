package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"diesel-manager-web/internal/gateway"
	"diesel-manager-web/internal/guard"
	"diesel-manager-web/internal/session"
	"diesel-manager-web/internal/web"
)

const loginFailed = "Login failed. Please try again."

// LoginPage renders the login form. Authenticated sessions go home.
func (h *Handler) LoginPage(c *gin.Context) {
	if _, st := current(c); st.IsAuthenticated {
		c.Redirect(http.StatusSeeOther, guard.PathDashboard)
		return
	}
	c.HTML(http.StatusOK, "login.html", h.page(c, "Log in", gin.H{"EmployeeNumber": ""}))
}

func (h *Handler) loginError(c *gin.Context, status int, emp, msg string) {
	p := h.page(c, "Log in", gin.H{"EmployeeNumber": emp})
	p.Flash = &web.Flash{Kind: "error", Text: msg}
	c.HTML(status, "login.html", p)
}

// Login exchanges credentials for tokens, stores them in a fresh session and
// fetches the profile. A failing profile fetch leaves the login summary role
// in place.
func (h *Handler) Login(c *gin.Context) {
	emp := strings.TrimSpace(c.PostForm("employee_number"))
	password := c.PostForm("password")
	if emp == "" || password == "" {
		h.loginError(c, http.StatusBadRequest, emp, "Employee number and password are required")
		return
	}

	ctx := c.Request.Context()
	res, err := h.svc.Login(ctx, emp, password)
	if err != nil {
		log.WithError(err).WithField("employee_number", emp).Info("login rejected")
		status := http.StatusUnauthorized
		if !gateway.IsStatus(err, http.StatusUnauthorized) && !gateway.IsStatus(err, http.StatusBadRequest) {
			status = http.StatusBadGateway
		}
		h.loginError(c, status, emp, gateway.UserMessage(err, loginFailed))
		return
	}

	// A new id on every login keeps a pre-login cookie from being reused.
	old, _ := current(c)
	h.forget(old.ID())
	if err := h.sessions.Forget(ctx, old.ID()); err != nil {
		log.WithError(err).Warn("failed to delete previous session")
	}
	id := session.NewID()
	auth := session.Auth{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken, User: res.User}
	if err := h.sessions.SetAuth(ctx, id, auth); err != nil {
		log.WithError(err).Error("failed to store session")
		h.loginError(c, http.StatusInternalServerError, emp, loginFailed)
		return
	}
	session.SetCookie(c.Writer, id)

	handle := h.sessions.Handle(id)
	profile, err := h.svc.As(handle).Profile(ctx)
	if err != nil {
		log.WithError(err).WithField("employee_number", emp).Warn("failed to fetch profile after login")
	} else if err := h.sessions.SetProfile(ctx, id, profile); err != nil {
		log.WithError(err).Warn("failed to store profile")
	}

	log.WithFields(log.Fields{"employee_number": emp, "role": res.User.Role}).Info("user logged in")
	c.Redirect(http.StatusSeeOther, guard.PathDashboard)
}

// Logout clears the session and everything cached for it.
func (h *Handler) Logout(c *gin.Context) {
	handle, _ := current(c)
	ctx := c.Request.Context()
	if err := handle.ClearAuth(ctx); err != nil {
		log.WithError(err).Warn("failed to clear session")
	}
	h.forget(handle.ID())
	if err := h.sessions.Forget(ctx, handle.ID()); err != nil {
		log.WithError(err).Warn("failed to delete session")
	}
	session.ClearCookie(c.Writer)
	c.Redirect(http.StatusSeeOther, guard.PathLogin)
}
