// Package resolver expands short links by following their HTTP redirect chain.
package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"

	urlutil "github.com/linktrim/linktrim/url"
)

const defaultUserAgent = "linktrim/1.0 (link canonicalizer; +https://github.com/linktrim/linktrim)"

// NetworkError reports a transport-level failure while resolving a URL.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("failed to resolve %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Resolver resolves a URL to its final destination. It is an explicit
// capability so callers can substitute a deterministic stub in tests.
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) (string, error)
}

// Config controls the HTTP resolver's client.
type Config struct {
	Timeout              time.Duration `yaml:"timeout,omitempty"`
	UserAgent            string        `yaml:"user_agent,omitempty"`
	Proxy                string        `yaml:"proxy,omitempty"`
	EnableSSRFProtection bool          `yaml:"enable_ssrf_protection,omitempty"`
	Retry                RetryConfig   `yaml:"retry,omitempty"`
}

// GetTimeout returns the request timeout, defaulting to 10 seconds.
func (c *Config) GetTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 10 * time.Second
}

// GetUserAgent returns the User-Agent header to send.
func (c *Config) GetUserAgent() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	return defaultUserAgent
}

// HTTP is a Resolver backed by a real HTTP client. A single GET is issued per
// call; the client's standard redirect following (capped at 10 hops) does the
// rest. No caching; retries are layered on separately by Retrier.
type HTTP struct {
	client    *http.Client
	userAgent string
}

// ssrfProtectedTransport validates every hop of the redirect chain against
// private and link-local address ranges before dialing.
type ssrfProtectedTransport struct {
	base http.RoundTripper
}

func (t *ssrfProtectedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := urlutil.ValidateNotPrivate(req.URL.Host); err != nil {
		return nil, err
	}

	return t.base.RoundTrip(req)
}

// New creates an HTTP resolver from the given configuration.
func New(cfg Config) (*HTTP, error) {
	transport, err := buildTransport(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.EnableSSRFProtection {
		transport = &ssrfProtectedTransport{base: transport}
	}

	return &HTTP{
		client: &http.Client{
			Timeout:   cfg.GetTimeout(),
			Transport: transport,
		},
		userAgent: cfg.GetUserAgent(),
	}, nil
}

// buildTransport returns a transport honoring the configured proxy. HTTP and
// HTTPS proxies go through the standard proxy mechanism, socks5 through a
// dialer from golang.org/x/net/proxy.
func buildTransport(cfg Config) (http.RoundTripper, error) {
	if cfg.Proxy == "" {
		return http.DefaultTransport, nil
	}

	proxyURL, err := url.Parse(cfg.Proxy)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url %q: %w", cfg.Proxy, err)
	}

	switch proxyURL.Scheme {
	case "http", "https":
		return &http.Transport{Proxy: http.ProxyURL(proxyURL)}, nil
	case "socks5":
		var auth *proxy.Auth
		if user := proxyURL.User; user != nil {
			password, _ := user.Password()
			auth = &proxy.Auth{User: user.Username(), Password: password}
		}

		dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create socks5 dialer for %q: %w", cfg.Proxy, err)
		}

		contextDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("socks5 dialer does not support context dialing")
		}

		return &http.Transport{DialContext: contextDialer.DialContext}, nil
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", proxyURL.Scheme)
	}
}

// Resolve issues one GET for rawURL and returns the URL that finally
// responded after all redirects completed.
func (h *HTTP) Resolve(ctx context.Context, rawURL string) (string, error) {
	if _, err := urlutil.ParseAndValidate(rawURL); err != nil {
		return "", &NetworkError{URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &NetworkError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return "", &NetworkError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	// The body is irrelevant; drain a little so the connection can be reused.
	io.CopyN(io.Discard, resp.Body, 4096)

	return resp.Request.URL.String(), nil
}
