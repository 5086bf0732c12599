package urlutil

import (
	"net"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// RegistrableDomain returns the eTLD+1 for a host ("news.bbc.co.uk" ->
// "bbc.co.uk"). IP addresses and hosts without a known public suffix
// (localhost, 127.0.0.1:8080 test servers) are returned as-is, minus any
// port, so each one counts as its own domain.
func RegistrableDomain(host string) string {
	h := strings.ToLower(host)
	if stripped, _, err := net.SplitHostPort(h); err == nil {
		h = stripped
	}
	h = strings.TrimSuffix(h, ".")
	if h == "" {
		return host
	}
	if net.ParseIP(h) != nil {
		return h
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(h)
	if err != nil {
		return h
	}
	return domain
}
