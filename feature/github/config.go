package github

import (
	"net/http"
	"strings"
	"time"

	"duet-backup/core/transport"
)

// Config holds configuration for the GitHub remote.
type Config struct {
	// User is the account name used for authentication and as default owner.
	User string `mapstructure:"user" default:""`
	// Token is a personal access token with contents write permission.
	Token string `mapstructure:"token" default:""`
	// Repo is "name" (owned by User) or "owner/name".
	Repo string `mapstructure:"repo" default:""`
	// APIURL is the REST API base URL.
	APIURL string `mapstructure:"api_url" default:"https://api.github.com"`
	// TimeoutSeconds bounds a single request attempt.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
	// MaxAttempts is the number of attempts per request.
	MaxAttempts int `mapstructure:"max_attempts" default:"2"`
}

// OwnerAndName splits Repo into owner and repository name.
func (c Config) OwnerAndName() (string, string) {
	if owner, name, ok := strings.Cut(c.Repo, "/"); ok {
		return owner, name
	}
	return c.User, c.Repo
}

// Policy converts the configuration into a transport policy. GitHub has no
// session to renew, so no status triggers reauthentication.
func (c Config) Policy() transport.Policy {
	p := transport.DefaultPolicy()
	p.Accept = []int{http.StatusOK, http.StatusCreated, http.StatusNoContent}
	p.AuthExpired = []int{}
	if c.TimeoutSeconds > 0 {
		p.Timeout = time.Duration(c.TimeoutSeconds) * time.Second
	}
	if c.MaxAttempts > 0 {
		p.MaxAttempts = c.MaxAttempts
	}
	return p
}
