package middleware

import (
	"net/http"
	"path"
	"strings"
)

// Normalize standardizes request fields coming through proxies (Vercel/Cloudflare).
// Whitespace around the path is trimmed, repeated or trailing slashes are
// cleaned so "/api//projects/" routes like "/api/projects", and scheme/host
// are restored from forwarding headers.
func Normalize() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p := cleanPath(r.URL.Path); p != r.URL.Path {
				r.URL.Path = p
				r.URL.RawPath = ""
			}

			if xfproto := r.Header.Get("X-Forwarded-Proto"); xfproto != "" {
				r.URL.Scheme = strings.ToLower(strings.TrimSpace(strings.Split(xfproto, ",")[0]))
			}
			if xfhost := r.Header.Get("X-Forwarded-Host"); xfhost != "" {
				r.Host = strings.TrimSpace(strings.Split(xfhost, ",")[0])
			}
			next.ServeHTTP(w, r)
		})
	}
}

func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
