package whatsapp

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// validateMediaURL accepts media links that point back at the WAHA instance.
// WAHA running in a container often reports its files under the service name
// or a bridge-network address, so those are allowed on the API port.
func validateMediaURL(baseURL, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid media URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("unsupported URL scheme: %s", u.Scheme)
	}

	waha, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid WAHA base URL: %w", err)
	}

	if strings.EqualFold(u.Hostname(), waha.Hostname()) && portOf(u) == portOf(waha) {
		return nil
	}
	if portOf(u) == portOf(waha) {
		if isContainerHost(u.Hostname()) {
			return nil
		}
		if ip := net.ParseIP(u.Hostname()); ip != nil && ip.IsPrivate() {
			return nil
		}
	}

	return fmt.Errorf("download host not allowed: %s", u.Hostname())
}

// isContainerHost reports single-label names such as "waha".
func isContainerHost(hostname string) bool {
	if hostname == "" || hostname == "localhost" {
		return false
	}
	if net.ParseIP(hostname) != nil {
		return false
	}
	return !strings.Contains(hostname, ".")
}

func portOf(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	if u.Scheme == "https" {
		return "443"
	}
	return "80"
}
