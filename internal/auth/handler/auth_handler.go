package handler

import (
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/channelforge/auth-service/config"
	"github.com/channelforge/auth-service/internal/auth/dto"
	"github.com/channelforge/auth-service/internal/auth/service"
	autherror "github.com/channelforge/auth-service/internal/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

const refreshCookieName = "refresh_token"

type AuthHandler struct {
	userService   *service.UserService
	tokenService  service.TokenGenerator
	refreshMaxAge int
	secureCookies bool
	log           zerolog.Logger
}

func NewAuthHandler(userService *service.UserService, tokenService service.TokenGenerator, cfg *config.Config, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		userService:   userService,
		tokenService:  tokenService,
		refreshMaxAge: cfg.RefreshExpiryMin * 60,
		secureCookies: cfg.IsProduction(),
		log:           log,
	}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var input dto.RegisterInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	user, err := h.userService.Register(c.Context(), input)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":    user.ID,
		"email": user.Email,
		"role":  user.Role,
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var input dto.LoginInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	input.IPAddress = c.IP()
	input.UserAgent = string(c.Request().Header.UserAgent())

	result, err := h.userService.Login(c.Context(), input)
	if err != nil {
		return h.respondError(c, err)
	}

	h.setRefreshCookie(c, result.RefreshToken)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"accessToken": result.AccessToken,
		"user":        result.User,
	})
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	meta := dto.RequestMeta{
		IPAddress: c.IP(),
		UserAgent: string(c.Request().Header.UserAgent()),
	}

	result, err := h.userService.Refresh(c.Context(), c.Cookies(refreshCookieName), meta)
	if err != nil {
		return h.respondError(c, err)
	}

	h.setRefreshCookie(c, result.RefreshToken)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"accessToken": result.AccessToken,
		"user":        result.User,
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.userService.Logout(c.Context(), c.Cookies(refreshCookieName)); err != nil {
		return h.respondError(c, err)
	}

	h.clearRefreshCookie(c)

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	claims := ClaimsFromCtx(c)
	if claims == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	profile, err := h.userService.Me(c.Context(), claims.Subject)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(profile)
}

func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var input dto.ForgotPasswordInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	input.IPAddress = c.IP()
	input.UserAgent = string(c.Request().Header.UserAgent())

	if err := h.userService.ForgotPassword(c.Context(), input); err != nil {
		return h.respondError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "If the account exists, password reset instructions were sent.",
	})
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var input dto.ResetPasswordInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	if err := h.userService.ResetPassword(c.Context(), input); err != nil {
		return h.respondError(c, err)
	}

	h.clearRefreshCookie(c)

	return c.SendStatus(fiber.StatusNoContent)
}

// respondError maps the service error taxonomy onto HTTP. Anything outside
// the taxonomy is a backend failure: logged and surfaced as a plain 500.
func (h *AuthHandler) respondError(c *fiber.Ctx, err error) error {
	var rateLimited *autherror.RateLimitError
	if errors.As(err, &rateLimited) {
		retryAfter := int(math.Ceil(rateLimited.RetryAfter.Seconds()))
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": rateLimited.Error()})
	}

	switch {
	case errors.Is(err, autherror.ErrInvalidEmail),
		errors.Is(err, autherror.ErrWeakPassword),
		errors.Is(err, autherror.ErrInvalidResetToken):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, autherror.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, autherror.ErrInvalidSession):
		h.clearRefreshCookie(c)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, autherror.ErrEmailAlreadyInUse):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, autherror.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}

	h.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}

func (h *AuthHandler) setRefreshCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   h.refreshMaxAge,
		HTTPOnly: true,
		Secure:   h.secureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.secureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
