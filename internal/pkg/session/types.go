// internal/pkg/session/types.go
package session

import (
	"net/http"
	"time"
)

// Options are the attributes applied to a cookie write.
type Options struct {
	Path     string
	Domain   string
	MaxAge   int
	HttpOnly bool
	Secure   bool
	SameSite http.SameSite
}

// CookieToSet is a single pending cookie write.
type CookieToSet struct {
	Name    string
	Value   string
	Options Options
}

func (o Options) cookie(name, value string) *http.Cookie {
	path := o.Path
	if path == "" {
		path = "/"
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   o.Domain,
		MaxAge:   o.MaxAge,
		HttpOnly: o.HttpOnly,
		Secure:   o.Secure,
		SameSite: o.SameSite,
	}
}

// Expired returns a copy of o that deletes the cookie.
func (o Options) Expired() Options {
	o.MaxAge = -1
	return o
}

// SessionData is the provider session persisted in the auth cookie.
type SessionData struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type,omitempty"`
	ExpiresAt    int64        `json:"expires_at"`
	User         *SessionUser `json:"user,omitempty"`
}

type SessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

func (s *SessionData) Expiry() time.Time {
	return time.Unix(s.ExpiresAt, 0)
}
