package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// Default client settings.
const (
	// DefaultTimeout covers a full request including body download.
	// Image CDNs are generally fast; slow hosts are not worth stalling
	// a whole page scan for.
	DefaultTimeout = 15 * time.Second

	// DefaultMaxBodySize caps downloads at 10MB. Larger files are
	// truncated, which makes them fail image decoding and be skipped.
	DefaultMaxBodySize = 10 * 1024 * 1024

	// DefaultUserAgent mimics a regular browser. Some image hosts refuse
	// requests with obvious scanner user agents, which would blind the
	// detector to exactly the pages worth checking.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Error wraps a failure to obtain source bytes. The scan adapters catch
// it, log it, and move on to the next item.
type Error struct {
	Locator string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Locator, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Client fetches page and image bytes. The zero value is not usable;
// construct with New.
type Client struct {
	httpClient  *http.Client
	userAgent   string
	maxBodySize int64
	headers     map[string]string
}

// Option configures a Client.
type Option func(*Client) error

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.httpClient.Timeout = d
		return nil
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) error {
		if ua != "" {
			c.userAgent = ua
		}
		return nil
	}
}

// WithMaxBodySize sets the maximum number of response bytes to read.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) error {
		if n > 0 {
			c.maxBodySize = n
		}
		return nil
	}
}

// WithHeaders adds extra headers (e.g. a session cookie for a protected
// site) to every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) error {
		for k, v := range headers {
			c.headers[k] = v
		}
		return nil
	}
}

// WithSOCKSProxy routes all requests through a SOCKS5 proxy at the given
// "host:port" address.
func WithSOCKSProxy(addr string) Option {
	return func(c *Client) error {
		if addr == "" {
			return nil
		}
		dialer, err := proxy.SOCKS5("tcp", addr, nil, proxy.Direct)
		if err != nil {
			return fmt.Errorf("invalid SOCKS5 proxy %s: %w", addr, err)
		}

		transport := &http.Transport{}
		if contextDialer, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = contextDialer.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, address string) (net.Conn, error) {
				return dialer.Dial(network, address)
			}
		}
		c.httpClient.Transport = transport
		return nil
	}
}

// New creates a Client with the given options applied over the defaults.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		headers:     make(map[string]string),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Fetch returns the raw bytes behind the locator. HTTP and HTTPS URLs are
// downloaded; anything else is treated as a local file path, which keeps
// "add a target from a file on disk" working with the same code path.
func (c *Client) Fetch(ctx context.Context, locator string) ([]byte, error) {
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		return c.fetchURL(ctx, locator)
	}

	data, err := os.ReadFile(locator) //nolint:gosec // User-provided path is intentional
	if err != nil {
		return nil, &Error{Locator: locator, Err: err}
	}
	return data, nil
}

// fetchURL downloads the URL, honoring the configured size limit.
func (c *Client) fetchURL(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Locator: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Locator: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Locator: rawURL, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, &Error{Locator: rawURL, Err: err}
	}
	return data, nil
}
