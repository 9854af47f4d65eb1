package transport

import (
	"net/http"
	"slices"
	"time"
)

// Policy controls attempts, pacing and status classification.
type Policy struct {
	// MaxAttempts is the total number of attempts per call.
	MaxAttempts int
	// Delay is the fixed pause between two attempts.
	Delay time.Duration
	// Timeout bounds connection setup, the wait for response headers and each
	// gap between body reads. A steadily streaming body may run past it.
	Timeout time.Duration
	// Accept lists the statuses treated as success.
	Accept []int
	// AuthExpired lists the statuses that ask for a new session.
	AuthExpired []int
	// MaxBody caps the number of response bytes kept in a Result.
	MaxBody int64
}

const defaultMaxBody = 256 << 20

// DefaultPolicy returns two attempts, one second apart, five seconds each.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 2,
		Delay:       time.Second,
		Timeout:     5 * time.Second,
		Accept:      []int{http.StatusOK, http.StatusNoContent},
		AuthExpired: []int{http.StatusUnauthorized},
		MaxBody:     defaultMaxBody,
	}
}

// withDefaults fills zero fields from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	if p.Timeout <= 0 {
		p.Timeout = d.Timeout
	}
	if len(p.Accept) == 0 {
		p.Accept = d.Accept
	}
	if p.AuthExpired == nil {
		p.AuthExpired = d.AuthExpired
	}
	if p.MaxBody <= 0 {
		p.MaxBody = d.MaxBody
	}
	return p
}

func (p Policy) accepts(status int) bool {
	return slices.Contains(p.Accept, status)
}

func (p Policy) authExpired(status int) bool {
	return slices.Contains(p.AuthExpired, status)
}
