package constant

import "time"

// Roles are a closed set; anything else in storage is a data error.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

const (
	PasswordAlgoArgon2id = "argon2id"

	// Opaque token sizes in random bytes before base64url encoding.
	SessionTokenBytes = 48
	ResetTokenBytes   = 32

	ResetReasonDefault = "reset"

	MinPasswordLength = 8
)

// Login throttle policy: look at the newest LoginAttemptWindowSize rows inside
// LoginFailureWindow; at LoginFailureThreshold failures the caller must wait
// min(LoginBackoffCap, failures*LoginBackoffStep) since the latest failure.
const (
	LoginFailureWindow    = 5 * time.Minute
	LoginAttemptWindowSize = 5
	LoginFailureThreshold = 3
	LoginBackoffStep      = 5 * time.Second
	LoginBackoffCap       = 120 * time.Second
)

// IsAuthorized reports whether role is part of the allowed set. An empty
// allowed set means any authenticated role passes.
func IsAuthorized(role string, allowed ...string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}
