package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Outcome classifies the result of one call.
type Outcome int

const (
	// OutcomeOK means an accepted status was received.
	OutcomeOK Outcome = iota
	// OutcomeReauthenticate means the peer rejected the session.
	OutcomeReauthenticate
	// OutcomeFailed means the call failed terminally or ran out of attempts.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeReauthenticate:
		return "reauthenticate"
	default:
		return "failed"
	}
}

// Result is the outcome of a call. It is always populated, even when no
// response was ever received (StatusCode is then 0).
type Result struct {
	Outcome    Outcome
	StatusCode int
	Reason     string
	Header     http.Header
	Body       []byte
	Attempts   int
	// Cause is the underlying error when the call failed outside the
	// exchange itself, such as a failed reauthentication.
	Cause error
}

// OK reports whether the call succeeded.
func (r Result) OK() bool {
	return r.Outcome == OutcomeOK
}

// Err converts a non-OK result into a *StatusError. It returns nil for OK results.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &StatusError{Outcome: r.Outcome, StatusCode: r.StatusCode, Reason: r.Reason, Cause: r.Cause}
}

// StatusError describes a failed call.
type StatusError struct {
	Outcome    Outcome
	StatusCode int
	Reason     string
	Cause      error
}

func (e *StatusError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("request %s: %s", e.Outcome, e.Reason)
	}
	return fmt.Sprintf("request %s: status %d: %s", e.Outcome, e.StatusCode, e.Reason)
}

func (e *StatusError) Unwrap() error {
	return e.Cause
}

// RequestFunc builds the request for one attempt. It is called again for every
// attempt so that bodies and session headers are fresh.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// Client executes requests under a Policy.
type Client struct {
	http   *http.Client
	policy Policy
	logger *zap.Logger
}

// NewClient creates a Client. A nil httpClient uses a client without its own
// timeout; the inactivity timeout of the policy applies instead.
func NewClient(httpClient *http.Client, policy Policy, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:   httpClient,
		policy: policy.withDefaults(),
		logger: logger,
	}
}

// Policy returns the effective policy.
func (c *Client) Policy() Policy {
	return c.policy
}

// Do runs build/send/read up to MaxAttempts times and classifies the outcome.
func (c *Client) Do(ctx context.Context, build RequestFunc) Result {
	last := Result{Outcome: OutcomeFailed, Reason: "no attempt made"}

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, c.policy.Delay); err != nil {
				last.Reason = err.Error()
				return last
			}
		}

		res, retry := c.attempt(ctx, build)
		res.Attempts = attempt
		if !retry {
			return res
		}

		c.logger.Debug("transient request failure",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.policy.MaxAttempts),
			zap.String("reason", res.Reason))
		last = res
	}

	c.logger.Debug("request attempts exhausted",
		zap.Int("status", last.StatusCode),
		zap.String("reason", last.Reason))
	return last
}

// errIdle cancels an attempt that made no progress for a whole Timeout.
var errIdle = errors.New("no progress within timeout")

// attempt performs a single exchange. retry is true when the failure is transient.
//
// Timeout bounds connection setup and the wait for response headers, and
// then every gap between two reads of the request or response body. A body
// that keeps streaming is never cut off.
func (c *Client) attempt(ctx context.Context, build RequestFunc) (Result, bool) {
	actx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	idle := time.AfterFunc(c.policy.Timeout, func() { cancel(errIdle) })
	defer idle.Stop()

	req, err := build(actx)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Reason: fmt.Sprintf("build request: %v", err)}, false
	}
	if req.Body != nil && req.Body != http.NoBody {
		req.Body = &idleReader{r: req.Body, timer: idle, timeout: c.policy.Timeout}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.failed(ctx, actx, Result{}, err)
	}
	defer resp.Body.Close()

	idle.Reset(c.policy.Timeout)
	body, err := io.ReadAll(io.LimitReader(&idleReader{r: resp.Body, timer: idle, timeout: c.policy.Timeout}, c.policy.MaxBody+1))
	if err != nil {
		return c.failed(ctx, actx, Result{StatusCode: resp.StatusCode, Header: resp.Header}, fmt.Errorf("read body: %w", err))
	}
	if int64(len(body)) > c.policy.MaxBody {
		return Result{
			Outcome:    OutcomeFailed,
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Reason:     fmt.Sprintf("response exceeds %d bytes", c.policy.MaxBody),
		}, false
	}

	res := Result{
		StatusCode: resp.StatusCode,
		Reason:     http.StatusText(resp.StatusCode),
		Header:     resp.Header,
		Body:       body,
	}

	switch {
	case c.policy.accepts(resp.StatusCode):
		res.Outcome = OutcomeOK
	case c.policy.authExpired(resp.StatusCode):
		res.Outcome = OutcomeReauthenticate
	default:
		res.Outcome = OutcomeFailed
		if msg := trimBody(body); msg != "" {
			res.Reason = msg
		}
	}
	return res, false
}

// failed classifies a send or read error. An idle timeout is transient, a
// cancelled parent context is not.
func (c *Client) failed(ctx, actx context.Context, res Result, err error) (Result, bool) {
	res.Outcome = OutcomeFailed
	if errors.Is(context.Cause(actx), errIdle) {
		res.Reason = fmt.Sprintf("%v: %v", errIdle, err)
		return res, ctx.Err() == nil
	}
	res.Reason = err.Error()
	if ctx.Err() != nil {
		return res, false
	}
	return res, IsTransient(err)
}

// idleReader pushes the idle deadline back whenever data moves.
type idleReader struct {
	r       io.ReadCloser
	timer   *time.Timer
	timeout time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.timer.Reset(r.timeout)
	}
	return n, err
}

func (r *idleReader) Close() error {
	return r.r.Close()
}

// IsTransient reports whether err is a connection-level failure worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func trimBody(body []byte) string {
	const maxReason = 512
	if len(body) > maxReason {
		body = body[:maxReason]
	}
	return strings.TrimSpace(string(body))
}
