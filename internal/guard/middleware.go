package guard

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"diesel-manager-web/internal/model"
)

// Subject is what the guard needs to know about the current request.
type Subject struct {
	Authenticated bool
	Role          model.Role
}

// SubjectFunc resolves the subject of a request, typically from the session
// loaded by an earlier middleware.
type SubjectFunc func(c *gin.Context) Subject

// Require gates a page route. Denied requests are redirected with 303 so a
// POST is followed by a GET.
func Require(path string, subject SubjectFunc) gin.HandlerFunc {
	route, ok := Lookup(path)
	if !ok {
		panic("guard: unknown route " + path)
	}
	return func(c *gin.Context) {
		s := subject(c)
		d := Decide(s.Authenticated, s.Role, route)
		if d.Allowed() {
			c.Next()
			return
		}
		if d.Outcome == RedirectHome {
			log.WithFields(log.Fields{"path": c.Request.URL.Path, "role": s.Role}).Info("role not allowed on route")
		}
		c.Redirect(http.StatusSeeOther, d.Location)
		c.Abort()
	}
}
