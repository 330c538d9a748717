package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"diesel-manager-web/internal/backend"
	"diesel-manager-web/internal/gateway"
	"diesel-manager-web/internal/model"
	"diesel-manager-web/internal/parse"
	"diesel-manager-web/internal/view"
	"diesel-manager-web/internal/web"
)

var timeNow = func() time.Time { return time.Now().UTC() }

// Audit renders one page of the audit trail. The search box filters the
// loaded page.
func (h *Handler) Audit(c *gin.Context) {
	pg := view.PageFromQuery(c.Request.URL.Query())
	logs, err := h.client(c).AuditLogs(c.Request.Context(), pg.Page, pg.Limit)
	if err != nil {
		h.failPage(c, "Audit Trail", err, "Failed to load the audit trail")
		return
	}
	pg = pg.WithTotal(logs.Total)
	search := c.Query("q")
	items := view.Filter(logs.Items, func(l backend.AuditLog) bool {
		return view.Contains(search, l.Actor, l.Action, l.Entity, l.EntityID, l.Details)
	})
	table := view.NewTable(
		[]string{"Time", "Actor", "Action", "Entity", "Details"},
		items,
		func(l backend.AuditLog) []string {
			return []string{l.CreatedAt.Format("2006-01-02 15:04"), l.Actor, l.Action, l.Entity + " " + l.EntityID, l.Details}
		})
	c.HTML(http.StatusOK, "list.html", h.page(c, "Audit Trail", web.ListPage{
		Table:  table,
		Links:  pg.Links(c.Request.URL.Path, c.Request.URL.Query()),
		Search: search,
		Total:  logs.Total,
	}))
}

func (h *Handler) renderUsers(c *gin.Context, status int, edit backend.User, formErr string) {
	pg := view.PageFromQuery(c.Request.URL.Query())
	users, err := h.client(c).Users(c.Request.Context(), pg.Page, pg.Limit)
	if err != nil {
		h.failPage(c, "User Management", err, "Failed to load users")
		return
	}
	if id := c.Query("edit"); id != "" && edit.ID == "" {
		for _, u := range users.Items {
			if u.ID == id {
				edit = u
			}
		}
	}
	if edit.Role == model.RoleUnknown {
		edit.Role = model.RoleDriver
	}
	pg = pg.WithTotal(users.Total)
	c.HTML(status, "users.html", h.page(c, "User Management", gin.H{
		"Users": users.Items,
		"Links": pg.Links(c.Request.URL.Path, c.Request.URL.Query()),
		"Roles": model.Roles(),
		"Edit":  edit,
		"Error": formErr,
	}))
}

// Users lists accounts with the add/edit form.
func (h *Handler) Users(c *gin.Context) {
	h.renderUsers(c, http.StatusOK, backend.User{}, "")
}

// SaveUser creates, updates or deletes an account depending on the action.
func (h *Handler) SaveUser(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.PostForm("id")
	client := h.client(c)

	if c.PostForm("action") == "delete" {
		if err := client.DeleteUser(ctx, id); err != nil {
			if h.expired(c, err, false) {
				return
			}
			h.renderUsers(c, http.StatusOK, backend.User{}, gateway.UserMessage(err, "Failed to delete the user"))
			return
		}
		c.Redirect(http.StatusSeeOther, "/user-management")
		return
	}

	in := backend.UserInput{
		EmployeeNumber: strings.TrimSpace(c.PostForm("employee_number")),
		Name:           parse.Text(c.PostForm("name")),
		MobileNumber:   strings.TrimSpace(c.PostForm("mobile_number")),
		SiteID:         strings.TrimSpace(c.PostForm("site_id")),
		Password:       c.PostForm("password"),
	}
	edit := backend.User{ID: id, EmployeeNumber: in.EmployeeNumber, Name: in.Name, MobileNumber: in.MobileNumber, SiteID: in.SiteID}
	role, err := model.ParseRole(c.PostForm("role"))
	if err != nil {
		h.renderUsers(c, http.StatusBadRequest, edit, "Please choose a valid role")
		return
	}
	in.Role, edit.Role = role, role
	switch {
	case in.EmployeeNumber == "" || in.Name == "":
		h.renderUsers(c, http.StatusBadRequest, edit, "Employee number and name are required")
		return
	case in.MobileNumber != "" && !parse.ValidMobile(in.MobileNumber):
		h.renderUsers(c, http.StatusBadRequest, edit, "Mobile number must be 11 characters")
		return
	case id == "" && in.Password == "":
		h.renderUsers(c, http.StatusBadRequest, edit, "A password is required for new users")
		return
	}

	if id == "" {
		_, err = client.CreateUser(ctx, in)
	} else {
		_, err = client.UpdateUser(ctx, id, in)
	}
	if err != nil {
		if h.expired(c, err, false) {
			return
		}
		log.WithError(err).Warn("failed to save user")
		h.renderUsers(c, http.StatusOK, edit, gateway.UserMessage(err, "Failed to save the user"))
		return
	}
	c.Redirect(http.StatusSeeOther, "/user-management")
}
