package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"diesel-manager-web/internal/guard"
	"diesel-manager-web/internal/metrics"
	"diesel-manager-web/internal/mw"
	"diesel-manager-web/internal/session"
	"diesel-manager-web/internal/web"
)

// NewRouter creates and configures the gin engine.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestID(), mw.Logger(), metrics.Middleware())
	r.SetHTMLTemplate(web.Templates())
	r.StaticFS("/static", web.Static())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	srv := h.cfg.Server
	loginLimiter := mw.NewIPRateLimiter(rate.Limit(srv.LoginRatePerSec), srv.LoginBurst, 10*time.Minute)
	ttl := time.Duration(srv.CacheTTLSeconds) * time.Second
	caching := mw.Cache(h.cache, ttl, mw.SessionKey(session.CookieName))
	require := func(path string) gin.HandlerFunc { return guard.Require(path, subject) }

	app := r.Group("", h.LoadSession)
	{
		app.GET(guard.PathLogin, h.LoginPage)
		app.POST(guard.PathLogin, mw.RateLimiter(loginLimiter), h.Login)
		app.POST("/logout", h.Logout)

		app.GET(guard.PathDashboard, require(guard.PathDashboard), h.Dashboard)

		for kind, path := range formPaths {
			app.GET(path, require(path), h.FormPage(kind))
			g := app.Group(path, require(path))
			g.GET("/state", h.FormState(kind))
			g.POST("/field", h.FormField(kind))
			g.POST("/blur", h.FormBlur(kind))
			g.POST("/photo", h.FormPhoto(kind))
			g.POST("/signature/options", h.SignatureOptions(kind))
			g.POST("/signature/verify", h.SignatureVerify(kind))
			g.POST("/submit", h.FormSubmit(kind))
			g.POST("/reset", h.FormReset(kind))
		}

		reports := app.Group(guard.PathReports, require(guard.PathReports))
		reports.GET("", caching, h.Reports)
		reports.GET("/export.xlsx", caching, h.ExportReport)

		invoices := app.Group("", require(guard.PathInvoices))
		invoices.GET(guard.PathInvoices, h.Invoices)
		invoices.POST(guard.PathInvoices+"/generate", h.GenerateInvoice)
		invoice := app.Group("", require(guard.PathInvoice))
		invoice.GET(guard.PathInvoice, caching, h.Invoice)
		invoice.GET(guard.PathInvoice+"/pdf", caching, h.InvoicePDF)

		app.GET(guard.PathAudit, require(guard.PathAudit), h.Audit)
		app.GET(guard.PathUserManagement, require(guard.PathUserManagement), h.Users)
		app.POST(guard.PathUserManagement, require(guard.PathUserManagement), h.SaveUser)
	}

	r.NoRoute(func(c *gin.Context) {
		c.Redirect(http.StatusSeeOther, guard.PathLogin)
	})
	return r
}
