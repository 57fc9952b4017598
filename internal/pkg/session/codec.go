package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	xerrors "fleetdesk-service/internal/pkg/errors"
)

const (
	base64Prefix = "base64-"

	// MaxChunkSize keeps each cookie, name and attributes included, under
	// the 4096 byte browser limit.
	MaxChunkSize = 3180
)

// EncodeSession returns the writes that persist s under name, splitting it
// into name.0, name.1, ... when it does not fit one cookie. Session pieces
// present in existing but not produced now are expired.
func EncodeSession(name string, s *SessionData, existing []*http.Cookie, opts Options) ([]CookieToSet, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	value := base64Prefix + base64.RawURLEncoding.EncodeToString(raw)

	var out []CookieToSet
	written := make(map[string]bool)
	if len(value) <= MaxChunkSize {
		out = append(out, CookieToSet{Name: name, Value: value, Options: opts})
		written[name] = true
	} else {
		for i := 0; len(value) > 0; i++ {
			n := min(MaxChunkSize, len(value))
			chunkName := name + "." + strconv.Itoa(i)
			out = append(out, CookieToSet{Name: chunkName, Value: value[:n], Options: opts})
			written[chunkName] = true
			value = value[n:]
		}
	}

	for _, ck := range existing {
		if isSessionPiece(ck.Name, name) && !written[ck.Name] {
			out = append(out, CookieToSet{Name: ck.Name, Value: "", Options: opts.Expired()})
		}
	}

	return out, nil
}

// DecodeSession reads the session stored under name, whole or chunked.
// It returns xerrors.ErrNoSession when no session cookie is present.
func DecodeSession(name string, cookies []*http.Cookie) (*SessionData, error) {
	values := make(map[string]string, len(cookies))
	for _, ck := range cookies {
		values[ck.Name] = ck.Value
	}

	value, ok := values[name]
	if !ok {
		var b strings.Builder
		for i := 0; ; i++ {
			chunk, found := values[name+"."+strconv.Itoa(i)]
			if !found {
				break
			}
			b.WriteString(chunk)
		}
		value = b.String()
	}
	if value == "" {
		return nil, xerrors.ErrNoSession
	}

	raw := []byte(value)
	if strings.HasPrefix(value, base64Prefix) {
		decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(value[len(base64Prefix):], "="))
		if err != nil {
			return nil, fmt.Errorf("%w: bad cookie encoding", xerrors.ErrSessionExpired)
		}
		raw = decoded
	}

	var s SessionData
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: bad cookie payload", xerrors.ErrSessionExpired)
	}
	if s.AccessToken == "" && s.RefreshToken == "" {
		return nil, fmt.Errorf("%w: empty session", xerrors.ErrSessionExpired)
	}

	return &s, nil
}

// ClearSession expires every piece of the session stored under name.
func ClearSession(name string, existing []*http.Cookie, opts Options) []CookieToSet {
	var out []CookieToSet
	for _, ck := range existing {
		if isSessionPiece(ck.Name, name) {
			out = append(out, CookieToSet{Name: ck.Name, Value: "", Options: opts.Expired()})
		}
	}
	return out
}

func isSessionPiece(cookieName, name string) bool {
	if cookieName == name {
		return true
	}
	suffix, ok := strings.CutPrefix(cookieName, name+".")
	if !ok || suffix == "" {
		return false
	}
	_, err := strconv.Atoi(suffix)
	return err == nil
}
