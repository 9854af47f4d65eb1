package printer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"duet-backup/core/source"
	"duet-backup/core/transport"

	"go.uber.org/zap"
)

const sessionHeader = "X-Session-Key"

// Client talks to the controller's rr_ API and keeps its session.
type Client struct {
	base     string
	password string
	session  *transport.Session
	logger   *zap.Logger

	mu        sync.Mutex
	key       string
	connected bool
}

// NewClient creates a Client. A nil httpClient uses a default client.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid printer url %q", cfg.URL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("printer", u.Host))

	c := &Client{
		base:     strings.TrimSuffix(cfg.URL, "/"),
		password: cfg.Password,
		logger:   logger,
	}
	c.session = transport.NewSession(transport.NewClient(httpClient, cfg.Policy(), logger), c.connect, logger)
	return c, nil
}

type connectResponse struct {
	Err        int   `json:"err"`
	SessionKey int64 `json:"sessionKey"`
}

// connect replaces the current session with a new one.
func (c *Client) connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// The controller limits sessions; release ours before asking for another.
	if c.connected {
		c.session.Client().Do(ctx, c.request("/rr_disconnect", nil, c.key))
		c.connected = false
		c.key = ""
	}

	q := url.Values{}
	q.Set("password", c.password)
	q.Set("sessionKey", "yes")
	res := c.session.Client().Do(ctx, c.request("/rr_connect", q, ""))

	switch {
	case res.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: password is invalid", source.ErrAuth)
	case res.StatusCode == http.StatusServiceUnavailable:
		return fmt.Errorf("%w: no more connections available", source.ErrAuth)
	case res.StatusCode == http.StatusBadGateway:
		return fmt.Errorf("%w: incorrect DCS version", source.ErrAuth)
	case !res.OK():
		return fmt.Errorf("%w: is the printer turned on? %s", source.ErrUnavailable, res.Err())
	}

	var body connectResponse
	if len(res.Body) > 0 {
		if err := json.Unmarshal(res.Body, &body); err != nil {
			return fmt.Errorf("failed to decode rr_connect response: %w", err)
		}
	}
	if body.Err != 0 {
		return fmt.Errorf("%w: rr_connect returned err=%d", source.ErrAuth, body.Err)
	}

	if body.SessionKey != 0 {
		c.key = strconv.FormatInt(body.SessionKey, 10)
	}
	c.connected = true
	c.logger.Debug("Printer session established")
	return nil
}

func (c *Client) ensureConnected(ctx context.Context) error {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if connected {
		return nil
	}
	return c.connect(ctx)
}

func (c *Client) currentKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key
}

// request builds a GET to endpoint. An empty key sends no session header.
func (c *Client) request(endpoint string, q url.Values, key string) transport.RequestFunc {
	target := c.base + endpoint
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	return func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		if key != "" {
			req.Header.Set(sessionHeader, key)
		}
		return req, nil
	}
}

// get performs an authenticated request and maps failures onto source errors.
func (c *Client) get(ctx context.Context, endpoint string, q url.Values) (transport.Result, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return transport.Result{}, err
	}

	res := c.session.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return c.request(endpoint, q, c.currentKey())(ctx)
	})
	switch {
	case res.OK():
		return res, nil
	case errors.Is(res.Cause, transport.ErrReauthFailed):
		// connect already tells an unreachable printer from a refused login.
		err := res.Err()
		if errors.Is(err, source.ErrUnavailable) || errors.Is(err, source.ErrAuth) {
			return res, err
		}
		return res, fmt.Errorf("%w: %w", source.ErrAuth, err)
	case res.StatusCode == 0:
		return res, fmt.Errorf("%w: %s", source.ErrUnavailable, res.Reason)
	case res.StatusCode == http.StatusUnauthorized:
		return res, fmt.Errorf("%w: %s", source.ErrAuth, res.Reason)
	default:
		return res, res.Err()
	}
}

// Close ends the session.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	res := c.session.Client().Do(ctx, c.request("/rr_disconnect", nil, c.key))
	c.connected = false
	c.key = ""
	return res.Err()
}

// Host returns the host part of the controller address.
func (c *Client) Host() string {
	u, err := url.Parse(c.base)
	if err != nil {
		return ""
	}
	return u.Host
}
