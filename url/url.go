package url

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// MalformedURLError reports a piece of matched text that does not parse as a
// structurally valid URL.
type MalformedURLError struct {
	Raw string
	Err error
}

func (e *MalformedURLError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed url %q: %v", e.Raw, e.Err)
	}
	return fmt.Sprintf("malformed url %q", e.Raw)
}

func (e *MalformedURLError) Unwrap() error { return e.Err }

// ParseAndValidate parses a URL string and validates it is absolute with an
// http or https scheme and a host.
func ParseAndValidate(rawURL string) (*url.URL, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("url cannot be empty")
	}

	parsedURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("url must be absolute with scheme (http/https) and host")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("url scheme must be http or https")
	}

	return parsedURL, nil
}

// ParseLoose parses text that was matched inside a chat message and may lack
// a scheme (e.g. "b23.tv/abc123"). Schemeless input is parsed as https. The
// second return reports whether the input carried its own scheme so callers
// can serialize it back the way it was written (see FormatLoose).
func ParseLoose(raw string) (*url.URL, bool, error) {
	hadScheme := strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")

	candidate := raw
	if !hadScheme {
		candidate = "https://" + raw
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return nil, hadScheme, &MalformedURLError{Raw: raw, Err: err}
	}
	if u.Host == "" {
		return nil, hadScheme, &MalformedURLError{Raw: raw}
	}

	return u, hadScheme, nil
}

// FormatLoose serializes a URL parsed by ParseLoose, dropping the synthetic
// https scheme when the original text did not carry one.
func FormatLoose(u *url.URL, hadScheme bool) string {
	s := u.String()
	if !hadScheme {
		s = strings.TrimPrefix(s, "https://")
	}
	return s
}

// ValidateNotPrivate checks if a host (hostname or hostname:port) resolves to
// a private, loopback, or link-local IP address. Link-local covers the cloud
// metadata ranges (169.254.0.0/16 and fe80::/10).
func ValidateNotPrivate(host string) error {
	hostname, _, err := net.SplitHostPort(host)
	if err != nil {
		hostname = host
	}

	hostname = strings.Trim(hostname, "[]")

	if ip := net.ParseIP(hostname); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() {
			return fmt.Errorf("requests to private IP addresses are not allowed: %s", hostname)
		}
		if isLinkLocal(ip) {
			return fmt.Errorf("requests to link-local addresses are not allowed: %s", hostname)
		}
		return nil
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		return nil
	}

	for _, resolvedIP := range ips {
		if resolvedIP.IsLoopback() || resolvedIP.IsPrivate() {
			return fmt.Errorf("url resolves to private IP address: %s -> %s", hostname, resolvedIP.String())
		}
		if isLinkLocal(resolvedIP) {
			return fmt.Errorf("url resolves to link-local address: %s -> %s", hostname, resolvedIP.String())
		}
	}

	return nil
}

// isLinkLocal checks 169.254.0.0/16 (IPv4) and fe80::/10 (IPv6).
func isLinkLocal(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		return ip4[0] == 169 && ip4[1] == 254
	}
	return len(ip) == 16 && ip[0] == 0xfe && (ip[1]&0xc0) == 0x80
}
