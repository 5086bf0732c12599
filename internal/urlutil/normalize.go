// Package urlutil provides URL normalization and registrable-domain helpers.
//
// Normalization is the identity used by the visited set: two URLs are the
// same page if and only if they normalize to the same string. The rules are
// conservative — query parameter order is retained because some sites are
// order-sensitive, and trailing slashes are preserved as provided.
package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// Normalize canonicalizes a URL for deduplication and fetching:
//   - lowercases scheme and host
//   - strips default ports (:80 for http, :443 for https)
//   - removes the fragment
//   - collapses repeated slashes in the path (keeping the leading one)
//   - percent-decodes unreserved characters; reserved and control bytes
//     stay encoded
//   - retains query parameter order verbatim
//
// Only absolute http/https URLs with a host are accepted.
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", rawURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Host = strings.ToLower(u.Host)
	if u.Hostname() == "" {
		return "", fmt.Errorf("missing host in %q", rawURL)
	}

	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = u.Hostname()
	}

	u.Fragment = ""
	u.RawFragment = ""

	// Work on the encoded form so %2F is never confused with a literal
	// slash. Decoding only unreserved escapes keeps reserved ones intact.
	escaped := collapseSlashes(decodeUnreserved(u.EscapedPath()))
	decoded, err := url.PathUnescape(escaped)
	if err != nil {
		return "", fmt.Errorf("path of %q: %w", rawURL, err)
	}
	u.Path = decoded
	u.RawPath = escaped

	return u.String(), nil
}

// decodeUnreserved replaces %XX escapes of RFC 3986 unreserved characters
// (ALPHA / DIGIT / "-" / "." / "_" / "~") with their literal byte. All other
// escapes pass through unchanged.
func decodeUnreserved(escaped string) string {
	if !strings.Contains(escaped, "%") {
		return escaped
	}
	var b strings.Builder
	b.Grow(len(escaped))
	for i := 0; i < len(escaped); i++ {
		c := escaped[i]
		if c == '%' && i+2 < len(escaped) {
			hi, okHi := unhex(escaped[i+1])
			lo, okLo := unhex(escaped[i+2])
			if okHi && okLo {
				if d := hi<<4 | lo; isUnreserved(d) {
					b.WriteByte(d)
					i += 2
					continue
				}
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	}
	return false
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// collapseSlashes reduces runs of '/' to a single one.
func collapseSlashes(path string) string {
	if !strings.Contains(path, "//") {
		return path
	}
	var b strings.Builder
	b.Grow(len(path))
	var prevSlash bool
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	return b.String()
}
