package session

import (
	"net/http"
)

// Carrier is the per-request cookie context shared by everything that runs
// for one request. Writes are mirrored onto the inbound request immediately
// and queued for the response; the last write per cookie name wins.
type Carrier struct {
	req     *http.Request
	current []*http.Cookie
	pending []*http.Cookie
	dirty   map[string]bool
}

func NewCarrier(r *http.Request) *Carrier {
	return &Carrier{
		req:     r,
		current: r.Cookies(),
		dirty:   make(map[string]bool),
	}
}

// GetAll returns the request cookies as seen after every write so far.
func (c *Carrier) GetAll() []*http.Cookie {
	out := make([]*http.Cookie, len(c.current))
	copy(out, c.current)
	return out
}

// Get returns the current request-side value of a cookie.
func (c *Carrier) Get(name string) (string, bool) {
	for _, ck := range c.current {
		if ck.Name == name {
			return ck.Value, true
		}
	}
	return "", false
}

func (c *Carrier) SetAll(cookies []CookieToSet) {
	for _, ck := range cookies {
		c.ApplyCookie(ck.Name, ck.Value, ck.Options)
	}
}

// ApplyCookie records a cookie write on both the request and the response.
func (c *Carrier) ApplyCookie(name, value string, opts Options) {
	ck := opts.cookie(name, value)

	c.current = without(c.current, name)
	if !isDeletion(ck) {
		c.current = append(c.current, &http.Cookie{Name: name, Value: value})
	}
	c.req.Header.Del("Cookie")
	for _, cur := range c.current {
		c.req.AddCookie(cur)
	}

	replaced := false
	for i, p := range c.pending {
		if p.Name == name {
			c.pending[i] = ck
			replaced = true
			break
		}
	}
	if !replaced {
		c.pending = append(c.pending, ck)
	}
	c.dirty[name] = true
}

// Pending returns the response-side writes, one per cookie name.
func (c *Carrier) Pending() []*http.Cookie {
	out := make([]*http.Cookie, len(c.pending))
	copy(out, c.pending)
	return out
}

// WriteTo emits every write not emitted yet. It can be called more than
// once per request; a name rewritten after a flush is emitted again.
func (c *Carrier) WriteTo(w http.ResponseWriter) {
	for _, ck := range c.pending {
		if !c.dirty[ck.Name] {
			continue
		}
		http.SetCookie(w, ck)
		delete(c.dirty, ck.Name)
	}
}

func without(cookies []*http.Cookie, name string) []*http.Cookie {
	out := cookies[:0:0]
	for _, ck := range cookies {
		if ck.Name != name {
			out = append(out, ck)
		}
	}
	return out
}

func isDeletion(ck *http.Cookie) bool {
	return ck.MaxAge < 0 || ck.Value == ""
}
