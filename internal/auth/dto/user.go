package dto

import "time"

type UserOutput struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	LastLoginAt *time.Time `json:"lastLoginAt"`
}

// LoginResult is what login and refresh hand back to the transport layer. The
// raw refresh token travels to the client as a cookie, never in the JSON body.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         UserOutput
}
