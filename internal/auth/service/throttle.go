package service

import (
	"time"

	"github.com/channelforge/auth-service/internal/auth/domain"
	authconstant "github.com/channelforge/auth-service/pkg/constant"
)

// loginRetryAfter computes the remaining throttle wait for an email given its
// recent login attempts, newest first. Zero means the attempt may proceed to
// verification. The check is read-then-decide on purpose: no lock is held, so
// concurrent attempts can both pass — the bound is probabilistic throttling,
// not hard exclusion.
func loginRetryAfter(attempts []domain.LoginAttempt, now time.Time) time.Duration {
	var failures int
	var latestFailure time.Time

	for _, a := range attempts {
		if a.Success {
			continue
		}
		if failures == 0 || a.CreatedAt.After(latestFailure) {
			latestFailure = a.CreatedAt
		}
		failures++
	}

	if failures < authconstant.LoginFailureThreshold {
		return 0
	}

	backoff := time.Duration(failures) * authconstant.LoginBackoffStep
	if backoff > authconstant.LoginBackoffCap {
		backoff = authconstant.LoginBackoffCap
	}

	remaining := backoff - now.Sub(latestFailure)
	if remaining <= 0 {
		return 0
	}

	return remaining
}
