package middleware

import (
	"testing"

	"fleetdesk-service/internal/domain/auth"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Decide(t *testing.T) {
	anon := Subject{}
	driver := Subject{Authenticated: true, Role: auth.ParseRole("DRIVER")}
	admin := Subject{Authenticated: true, Role: auth.RoleAdmin}
	other := Subject{Authenticated: true, Role: auth.ParseRole("dispatcher")}
	defaulted := Subject{Authenticated: true, Role: auth.RoleAdmin, Defaulted: true}

	tests := []struct {
		name     string
		subject  Subject
		path     string
		location string
	}{
		{"anon root", anon, "/", LoginPath},
		{"anon invoices", anon, "/invoices", LoginPath},
		{"anon driver", anon, "/driver/delivery", LoginPath},
		{"anon login", anon, "/login", ""},
		{"anon login subpath", anon, "/login/magic-link", ""},
		{"anon callback", anon, "/auth/callback", ""},
		{"anon lookalike of login", anon, "/loginx", LoginPath},
		{"anon lookalike of auth", anon, "/authors", LoginPath},
		{"anon uppercase login", anon, "/LOGIN", LoginPath},

		{"driver root", driver, "/", DriverHomePath},
		{"driver invoices", driver, "/invoices", DriverHomePath},
		{"driver login", driver, "/login", DriverHomePath},
		{"driver reports lookalike", driver, "/drivers-report", DriverHomePath},
		{"driver home", driver, "/driver/delivery", ""},
		{"driver section root", driver, "/driver", ""},
		{"driver trailing slash", driver, "/driver/", ""},
		{"driver history", driver, "/driver/history", ""},

		{"admin root", admin, "/", ""},
		{"admin invoices", admin, "/invoices", ""},
		{"admin driver", admin, "/driver/delivery", AdminHomePath},
		{"admin driver root", admin, "/driver", AdminHomePath},
		{"admin login", admin, "/login", AdminHomePath},
		{"admin drivers report", admin, "/drivers-report", ""},
		{"admin callback", admin, "/auth/callback", ""},

		{"unknown role treated as admin", other, "/driver/profile", AdminHomePath},
		{"unknown role root", other, "/", ""},

		{"defaulted role fail open", defaulted, "/driver/anything", AdminHomePath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Policy{}.Decide(tt.path, tt.subject)
			if tt.location == "" {
				assert.Equal(t, ActionPass, d.Action)
				return
			}
			assert.Equal(t, ActionRedirect, d.Action)
			assert.Equal(t, tt.location, d.Location)
		})
	}
}

func TestPolicy_FailClosed(t *testing.T) {
	p := Policy{FailClosed: true}
	defaulted := Subject{Authenticated: true, Role: auth.RoleAdmin, Defaulted: true}

	d := p.Decide("/invoices", defaulted)
	assert.Equal(t, ActionRedirect, d.Action)
	assert.Equal(t, ProfileErrorPath, d.Location)

	// the error page itself must not loop
	assert.Equal(t, ActionPass, p.Decide("/login", defaulted).Action)
	assert.Equal(t, ActionPass, p.Decide("/auth/signout", defaulted).Action)

	resolved := Subject{Authenticated: true, Role: auth.RoleAdmin}
	assert.Equal(t, ActionPass, p.Decide("/invoices", resolved).Action)
}

func TestPolicy_redirectTargetsAreStable(t *testing.T) {
	subjects := []Subject{
		{},
		{Authenticated: true, Role: auth.RoleDriver},
		{Authenticated: true, Role: auth.RoleAdmin},
	}
	paths := []string{"/", "/invoices", "/driver/history", "/login", "/drivers-report", "/posts"}

	for _, s := range subjects {
		for _, path := range paths {
			d := Policy{}.Decide(path, s)
			if d.Action != ActionRedirect {
				continue
			}
			again := Policy{}.Decide(d.Location, s)
			assert.Equal(t, ActionPass, again.Action, "redirect loop from %s via %s", path, d.Location)
		}
	}
}

func TestHasSegmentPrefix(t *testing.T) {
	assert.True(t, hasSegmentPrefix("/driver", "/driver"))
	assert.True(t, hasSegmentPrefix("/driver/", "/driver"))
	assert.True(t, hasSegmentPrefix("/driver/a/b", "/driver"))
	assert.False(t, hasSegmentPrefix("/drivers-report", "/driver"))
	assert.False(t, hasSegmentPrefix("/Driver", "/driver"))
	assert.False(t, hasSegmentPrefix("/", "/driver"))
}

func TestAssetMatcher(t *testing.T) {
	m := NewAssetMatcher(nil)

	for _, p := range []string{"/favicon.ico", "/healthz", "/static/app.js", "/assets/x.css", "/images/a", "/logo.SVG", "/img/truck.webp", "/a/b.avif"} {
		assert.True(t, m.Match(p), p)
	}
	for _, p := range []string{"/", "/login", "/driver/delivery", "/static", "/invoices.json",
		"/api/v1/places/abc.png", "/api/v1/places/x.SVG", "/api/static/app.js", "/api/favicon.ico"} {
		assert.False(t, m.Match(p), p)
	}

	custom := NewAssetMatcher([]string{"public", " /_next/ "})
	assert.True(t, custom.Match("/public/app.js"))
	assert.True(t, custom.Match("/_next/static/chunk.js"))
	assert.False(t, custom.Match("/static/app.js"))

	apiPrefix := NewAssetMatcher([]string{"/api/v1/public"})
	assert.False(t, apiPrefix.Match("/api/v1/public/logo.png"))
}
