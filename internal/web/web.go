// Package web embeds the HTML templates and static assets of the front end.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"diesel-manager-web/internal/guard"
	"diesel-manager-web/internal/model"
	"diesel-manager-web/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Flash is a one-shot message rendered above the page content.
type Flash struct {
	Kind string
	Text string
}

// Page is the data every page template receives.
type Page struct {
	Title string
	Path  string
	User  string
	Role  model.Role
	Nav   []guard.NavItem
	Flash *Flash
	Data  any
}

// ListPage is the data of a paginated table page.
type ListPage struct {
	Table  view.Table
	Links  []view.Link
	Search string
	Total  int
}

var funcs = template.FuncMap{
	"qty": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"money": func(v float64) string {
		return fmt.Sprintf("QAR %.2f", v)
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02 15:04")
	},
	"percent": func(part, whole float64) int {
		if whole <= 0 {
			return 0
		}
		return int(part / whole * 100)
	},
	"active": func(current, path string) bool {
		if path == guard.PathDashboard {
			return current == path
		}
		return strings.HasPrefix(current, path)
	},
	"contains": func(list []string, v string) bool {
		for _, s := range list {
			if s == v {
				return true
			}
		}
		return false
	},
}

// Templates parses every embedded page template.
func Templates() *template.Template {
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}

// Static serves the embedded assets.
func Static() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

// Option is one choice of a select input.
type Option struct {
	Value string
	Label string
}

// FormField is one rendered input of an entry form.
type FormField struct {
	Name     string
	Label    string
	Type     string // text, number, select, multi, textarea
	Options  []Option
	Value    string
	Values   []string
	List     string
	Required bool
	Disabled bool
	Hidden   bool
	Error    string
}

// FormPage is the data of an entry form page.
type FormPage struct {
	Kind            string
	DebounceMillis  int
	Fields          []FormField
	RequiresCapture bool
}
