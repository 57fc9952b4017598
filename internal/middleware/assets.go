// internal/middleware/assets.go
package middleware

import (
	"path"
	"strings"
)

var (
	defaultAssetPrefixes = []string{"/static/", "/assets/", "/images/"}
	assetExtensions      = map[string]bool{
		".svg":  true,
		".png":  true,
		".jpg":  true,
		".jpeg": true,
		".gif":  true,
		".webp": true,
		".ico":  true,
		".avif": true,
	}
	assetPaths = map[string]bool{
		"/favicon.ico": true,
		"/healthz":     true,
	}
)

// AssetMatcher selects requests that bypass the gate.
type AssetMatcher struct {
	prefixes []string
}

// NewAssetMatcher uses the default static prefixes when none are given.
func NewAssetMatcher(prefixes []string) AssetMatcher {
	var cleaned []string
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		if !strings.HasSuffix(p, "/") {
			p += "/"
		}
		cleaned = append(cleaned, p)
	}
	if len(cleaned) == 0 {
		cleaned = defaultAssetPrefixes
	}
	return AssetMatcher{prefixes: cleaned}
}

// Match reports whether urlPath skips the gate: the fixed health and favicon
// paths, anything under a static prefix, or an image file outside the API.
func (m AssetMatcher) Match(urlPath string) bool {
	if hasSegmentPrefix(urlPath, APIPath) {
		return false
	}
	if assetPaths[urlPath] {
		return true
	}
	for _, p := range m.prefixes {
		if strings.HasPrefix(urlPath, p) {
			return true
		}
	}
	return assetExtensions[strings.ToLower(path.Ext(urlPath))]
}
