// internal/handlers/pages/pages_handler.go
package pages

import (
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"fleetdesk-service/internal/domain/auth"
	"fleetdesk-service/internal/middleware"
	"fleetdesk-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Breadcrumb struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

// Page describes what a route would render.
type Page struct {
	Title             string       `json:"title"`
	Path              string       `json:"path"`
	Section           string       `json:"section"`
	Breadcrumbs       []Breadcrumb `json:"breadcrumbs"`
	UnderConstruction bool         `json:"under_construction,omitempty"`
	Tabs              []Breadcrumb `json:"tabs,omitempty"`
	User              *auth.User   `json:"user,omitempty"`
	Role              auth.Role    `json:"role,omitempty"`
	Query             gin.H        `json:"query,omitempty"`
}

var driverTabs = []Breadcrumb{
	{Label: "Delivery", Href: "/driver/delivery"},
	{Label: "History", Href: "/driver/history"},
	{Label: "Profile", Href: "/driver/profile"},
}

type PagesHandler struct{}

func NewPagesHandler() *PagesHandler {
	return &PagesHandler{}
}

func (h *PagesHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/", h.page("Dashboard", "admin", false))
	r.GET("/invoices", h.page("Invoices", "admin", false))
	r.GET("/posts", h.page("Posts", "admin", true))
	r.GET("/login", h.login)
	r.GET("/driver", func(c *gin.Context) { response.Redirect(c, middleware.DriverHomePath) })
	r.GET("/driver/delivery", h.page("Delivery", "driver", false))
	r.GET("/driver/history", h.page("History", "driver", false))
	r.GET("/driver/profile", h.page("Profile", "driver", false))
}

func (h *PagesHandler) page(title, section string, underConstruction bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := Page{
			Title:             title,
			Path:              c.Request.URL.Path,
			Section:           section,
			Breadcrumbs:       Breadcrumbs(c.Request.URL.Path),
			UnderConstruction: underConstruction,
			Role:              middleware.GetRole(c),
		}
		if middleware.IsDriver(c) {
			p.Tabs = driverTabs
		}
		if user, ok := middleware.GetUser(c); ok {
			p.User = user
		}
		response.Success(c, http.StatusOK, "ok", p)
	}
}

// login surfaces the error and sent flags set by the auth redirects.
func (h *PagesHandler) login(c *gin.Context) {
	p := Page{
		Title:       "Sign in",
		Path:        c.Request.URL.Path,
		Section:     "auth",
		Breadcrumbs: Breadcrumbs(c.Request.URL.Path),
	}
	query := gin.H{}
	if e := c.Query("error"); e != "" {
		query["error"] = e
	}
	if c.Query("sent") != "" {
		query["sent"] = true
	}
	if len(query) > 0 {
		p.Query = query
	}
	response.Success(c, http.StatusOK, "ok", p)
}

// Breadcrumbs derives one crumb per path segment. Labels split on '-' and
// '_' and are title-cased; the root is "Home".
func Breadcrumbs(path string) []Breadcrumb {
	crumbs := []Breadcrumb{{Label: "Home", Href: "/"}}

	href := ""
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		href += "/" + seg
		crumbs = append(crumbs, Breadcrumb{Label: label(seg), Href: href})
	}
	return crumbs
}

func label(segment string) string {
	words := strings.FieldsFunc(segment, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
