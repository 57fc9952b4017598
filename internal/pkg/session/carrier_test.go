package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func cookieMap(cookies []*http.Cookie) map[string]string {
	m := make(map[string]string, len(cookies))
	for _, ck := range cookies {
		m[ck.Name] = ck.Value
	}
	return m
}

func TestCarrier_applyCookieUpdatesRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "sb-auth-token", Value: "old"})
	r.AddCookie(&http.Cookie{Name: "theme", Value: "dark"})

	c := NewCarrier(r)
	c.ApplyCookie("sb-auth-token", "new", Options{HttpOnly: true})

	// later reads through the carrier and the raw request both see the write
	require.Equal(t, "new", cookieMap(c.GetAll())["sb-auth-token"])
	ck, err := r.Cookie("sb-auth-token")
	require.NoError(t, err)
	require.Equal(t, "new", ck.Value)

	theme, err := r.Cookie("theme")
	require.NoError(t, err)
	require.Equal(t, "dark", theme.Value)
}

func TestCarrier_deletionRemovesFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "sb-auth-token", Value: "old"})

	c := NewCarrier(r)
	c.ApplyCookie("sb-auth-token", "", Options{MaxAge: -1})

	_, ok := c.Get("sb-auth-token")
	require.False(t, ok)
	_, err := r.Cookie("sb-auth-token")
	require.ErrorIs(t, err, http.ErrNoCookie)

	pending := c.Pending()
	require.Len(t, pending, 1)
	require.Equal(t, -1, pending[0].MaxAge)
}

func TestCarrier_lastWriteWins(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	c := NewCarrier(r)

	c.SetAll([]CookieToSet{
		{Name: "a", Value: "1"},
		{Name: "b", Value: "1"},
	})
	c.ApplyCookie("a", "2", Options{})

	pending := c.Pending()
	require.Len(t, pending, 2)
	require.Equal(t, "a", pending[0].Name)
	require.Equal(t, "2", pending[0].Value)
	require.Equal(t, "/", pending[0].Path)

	w := httptest.NewRecorder()
	c.WriteTo(w)
	got := cookieMap(w.Result().Cookies())
	require.Equal(t, map[string]string{"a": "2", "b": "1"}, got)
}

func TestCarrier_writeToOnlyEmitsNewWrites(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	c := NewCarrier(r)
	w := httptest.NewRecorder()

	c.ApplyCookie("a", "1", Options{})
	c.WriteTo(w)
	c.WriteTo(w)
	require.Len(t, w.Header().Values("Set-Cookie"), 1)

	c.ApplyCookie("b", "1", Options{})
	c.ApplyCookie("a", "3", Options{})
	c.WriteTo(w)

	headers := w.Header().Values("Set-Cookie")
	require.Len(t, headers, 3)

	// browsers apply Set-Cookie in order, so the final value of a is 3
	last := map[string]string{}
	for _, ck := range w.Result().Cookies() {
		last[ck.Name] = ck.Value
	}
	require.Equal(t, "3", last["a"])
	require.Equal(t, "1", last["b"])
}
