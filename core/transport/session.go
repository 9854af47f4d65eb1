package transport

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrReauthFailed marks a call abandoned because logging in again failed. The
// login error stays in the chain.
var ErrReauthFailed = errors.New("reauthentication failed")

// LoginFunc establishes a new session with the peer.
type LoginFunc func(ctx context.Context) error

// Session replays a call once after reauthenticating when the peer reports an
// expired session.
type Session struct {
	client *Client
	login  LoginFunc
	logger *zap.Logger
}

// NewSession binds a client to a login procedure.
func NewSession(client *Client, login LoginFunc, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{client: client, login: login, logger: logger}
}

// Client returns the underlying client.
func (s *Session) Client() *Client {
	return s.client
}

// Do performs the call. On OutcomeReauthenticate it logs in once and replays
// the call once; a second rejection is reported as OutcomeFailed.
func (s *Session) Do(ctx context.Context, build RequestFunc) Result {
	res := s.client.Do(ctx, build)
	if res.Outcome != OutcomeReauthenticate {
		return res
	}

	s.logger.Info("session expired, reauthenticating", zap.Int("status", res.StatusCode))
	if err := s.login(ctx); err != nil {
		return Result{
			Outcome:    OutcomeFailed,
			StatusCode: res.StatusCode,
			Header:     res.Header,
			Reason:     fmt.Sprintf("%v: %v", ErrReauthFailed, err),
			Attempts:   res.Attempts,
			Cause:      fmt.Errorf("%w: %w", ErrReauthFailed, err),
		}
	}

	replay := s.client.Do(ctx, build)
	replay.Attempts += res.Attempts
	if replay.Outcome == OutcomeReauthenticate {
		replay.Outcome = OutcomeFailed
		replay.Reason = "session rejected after reauthentication"
	}
	return replay
}
