package security

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resolves the caller address behind proxies. Header order matters:
// X-Forwarded-For first, then X-Real-IP, then CF-Connecting-IP, falling back
// to the socket address.
func ClientIP(r *http.Request) string {
	if v := r.Header.Get("X-Forwarded-For"); v != "" {
		if i := strings.IndexByte(v, ','); i >= 0 {
			v = v[:i]
		}
		return strings.TrimSpace(v)
	}
	if v := r.Header.Get("X-Real-IP"); v != "" {
		return strings.TrimSpace(v)
	}
	if v := r.Header.Get("CF-Connecting-IP"); v != "" {
		return strings.TrimSpace(v)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

const maxFilenameLen = 255

// SanitizeFilename makes an uploaded name safe for storage keys and report
// filenames. Everything outside [a-zA-Z0-9.-] becomes an underscore, runs of
// dots collapse to one, and the result is capped at 255 characters.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	prevDot := false
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
			b.WriteRune(c)
			prevDot = false
		case c == '.':
			if !prevDot {
				b.WriteByte('.')
			}
			prevDot = true
		default:
			b.WriteByte('_')
			prevDot = false
		}
	}
	out := b.String()
	if len(out) > maxFilenameLen {
		out = out[:maxFilenameLen]
	}
	if out == "" {
		out = "file"
	}
	return out
}
