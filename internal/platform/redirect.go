package platform

import (
	"net/url"
	"strings"
)

// ResolveRedirect checks a caller-supplied post-payment redirect against the
// frontend origin and returns the absolute URL to use. Absolute URLs must have
// the same scheme and exactly the same host and port as the origin. Relative
// paths ("/billing", not "//host") resolve against the origin.
func ResolveRedirect(frontendOrigin, raw string) (string, bool) {
	origin, err := url.Parse(strings.TrimRight(frontendOrigin, "/"))
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return "", false
	}

	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, "\\\r\n\t") {
		return "", false
	}

	target, err := url.Parse(raw)
	if err != nil || target.User != nil || target.Opaque != "" {
		return "", false
	}

	if target.Scheme == "" && target.Host == "" {
		if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
			return "", false
		}
		return origin.ResolveReference(target).String(), true
	}

	if !strings.EqualFold(target.Scheme, origin.Scheme) {
		return "", false
	}
	if !strings.EqualFold(target.Host, origin.Host) {
		return "", false
	}
	return target.String(), true
}

// IsAllowedRedirect reports whether raw may be used as a redirect target.
func IsAllowedRedirect(frontendOrigin, raw string) bool {
	_, ok := ResolveRedirect(frontendOrigin, raw)
	return ok
}
