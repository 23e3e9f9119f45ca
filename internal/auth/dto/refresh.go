package dto

// RequestMeta carries the client context recorded against sessions, reset
// tokens and login attempts.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

type ForgotPasswordInput struct {
	Email     string `json:"email"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

type ResetPasswordInput struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}
