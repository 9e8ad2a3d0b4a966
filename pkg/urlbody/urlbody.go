// Package urlbody normalizes URLs into the scheme-less body stored on chain
// and rebuilds redirect targets and short links from it.
package urlbody

import (
	"net/url"
	"strings"
)

const (
	httpPrefix  = "http://"
	httpsPrefix = "https://"
)

// Normalize strips leading http:// and https:// prefixes until none remain,
// so Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	body := strings.TrimSpace(raw)
	for {
		switch {
		case strings.HasPrefix(body, httpPrefix):
			body = body[len(httpPrefix):]
		case strings.HasPrefix(body, httpsPrefix):
			body = body[len(httpsPrefix):]
		default:
			return body
		}
	}
}

// RedirectTarget re-attaches the scheme to a stored body.
func RedirectTarget(body string) string {
	return httpPrefix + Normalize(body)
}

// ShortURL builds "<base>#<key>". base is the page the fragment is resolved on.
func ShortURL(base, key string) string {
	if i := strings.IndexByte(base, '#'); i >= 0 {
		base = base[:i]
	}
	return base + "#" + key
}

// KeyFromShortURL extracts the key from a short URL, a "#key" fragment or a bare key.
func KeyFromShortURL(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '#'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Valid reports whether body forms a parseable http URL with a host.
func Valid(body string) bool {
	if body == "" {
		return false
	}
	u, err := url.Parse(RedirectTarget(body))
	return err == nil && u.Host != ""
}
