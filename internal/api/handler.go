// Package api serves the web front end: server-rendered pages plus the JSON
// endpoints the entry forms talk to.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"

	"diesel-manager-web/config"
	"diesel-manager-web/internal/backend"
	"diesel-manager-web/internal/export"
	"diesel-manager-web/internal/form"
	"diesel-manager-web/internal/gateway"
	"diesel-manager-web/internal/guard"
	"diesel-manager-web/internal/mw"
	"diesel-manager-web/internal/session"
	"diesel-manager-web/internal/web"
)

// PDFRenderer prints an invoice.
type PDFRenderer interface {
	Render(ctx context.Context, inv backend.Invoice) ([]byte, error)
}

// Deps are the collaborators of the handlers.
type Deps struct {
	Config   *config.Config
	Sessions *session.Manager
	Service  *backend.Service
	Forms    *form.Registry
	Cache    *cache.Cache
	PDF      PDFRenderer
}

// Handler holds shared dependencies for the page and form handlers.
type Handler struct {
	cfg      *config.Config
	sessions *session.Manager
	svc      *backend.Service
	forms    *form.Registry
	cache    *cache.Cache
	pdf      PDFRenderer
}

// NewHandler creates a new handler set.
func NewHandler(d Deps) *Handler {
	if d.Cache == nil {
		ttl := time.Duration(d.Config.Server.CacheTTLSeconds) * time.Second
		d.Cache = cache.New(ttl, 2*ttl)
	}
	if d.PDF == nil {
		d.PDF = export.PDFRenderer{ChromiumPath: d.Config.Export.ChromiumPath, Timeout: d.Config.Export.PDFTimeout}
	}
	return &Handler{
		cfg:      d.Config,
		sessions: d.Sessions,
		svc:      d.Service,
		forms:    d.Forms,
		cache:    d.Cache,
		pdf:      d.PDF,
	}
}

// LoadSession resolves the session cookie, issuing a fresh id when the
// browser has none, and stores the loaded state in the request context.
func (h *Handler) LoadSession(c *gin.Context) {
	id, ok := session.ReadCookie(c.Request)
	if !ok {
		id = session.NewID()
		session.SetCookie(c.Writer, id)
	}
	handle := h.sessions.Handle(id)
	st, err := handle.State(c.Request.Context())
	if err != nil {
		log.WithError(err).WithField("request_id", mw.GetRequestID(c)).Error("failed to load session")
		st = session.State{}
	}
	c.Request = c.Request.WithContext(session.WithState(c.Request.Context(), handle, st))
	c.Next()
}

func current(c *gin.Context) (*session.Handle, session.State) {
	handle, st, _ := session.FromContext(c.Request.Context())
	return handle, st
}

func subject(c *gin.Context) guard.Subject {
	_, st := current(c)
	return guard.Subject{Authenticated: st.IsAuthenticated, Role: st.Role()}
}

// client returns a backend client acting for the request's session.
func (h *Handler) client(c *gin.Context) *backend.Client {
	handle, _ := current(c)
	return h.svc.As(handle)
}

// page builds the layout data for the current session.
func (h *Handler) page(c *gin.Context, title string, data any) web.Page {
	_, st := current(c)
	p := web.Page{Title: title, Path: c.Request.URL.Path, Data: data}
	if st.IsAuthenticated {
		p.User = st.DisplayName()
		p.Role = st.Role()
		p.Nav = guard.NavItems(p.Role)
	}
	return p
}

// forget drops everything cached for the session.
func (h *Handler) forget(sid string) {
	h.forms.Drop(sid)
	mw.Purge(h.cache, sid)
}

// expired handles a session that ended mid-request. Pages are redirected to
// the login screen; JSON callers get 401 with the redirect target.
func (h *Handler) expired(c *gin.Context, err error, jsonReply bool) bool {
	if !errors.Is(err, gateway.ErrSessionExpired) {
		return false
	}
	handle, _ := current(c)
	h.forget(handle.ID())
	log.WithField("request_id", mw.GetRequestID(c)).Info("session expired; redirecting to login")
	if jsonReply {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session expired", "redirect": guard.PathLogin})
	} else {
		c.Redirect(http.StatusSeeOther, guard.PathLogin)
		c.Abort()
	}
	return true
}

// failPage renders the error page for a backend failure.
func (h *Handler) failPage(c *gin.Context, title string, err error, fallback string) {
	if h.expired(c, err, false) {
		return
	}
	status := http.StatusBadGateway
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		status = apiErr.StatusCode
	}
	log.WithError(err).WithField("path", c.Request.URL.Path).Warn("page load failed")
	c.HTML(status, "error.html", h.page(c, title, gateway.UserMessage(err, fallback)))
}

func (h *Handler) purgeCache(sid string) {
	mw.Purge(h.cache, sid)
}
