package handler

import (
	"strings"

	"github.com/channelforge/auth-service/internal/auth/service"
	authconstant "github.com/channelforge/auth-service/pkg/constant"
	"github.com/gofiber/fiber/v2"
)

const localsClaimsKey = "authClaims"

// Authenticate verifies the Bearer access token and stores the typed claims
// on the request context. Handlers read them back with ClaimsFromCtx; there
// is no ambient mutable auth state beyond this one value.
func (h *AuthHandler) Authenticate(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	tokenString, found := strings.CutPrefix(header, "Bearer ")
	if !found || tokenString == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing access token"})
	}

	claims, err := h.tokenService.VerifyAccessToken(tokenString)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid access token"})
	}

	c.Locals(localsClaimsKey, claims)

	return c.Next()
}

// RequireRole gates a route on the authenticated role. It must run after
// Authenticate.
func (h *AuthHandler) RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := ClaimsFromCtx(c)
		if claims == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}

		if !authconstant.IsAuthorized(claims.Role, roles...) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
		}

		return c.Next()
	}
}

// ClaimsFromCtx returns the claims stored by Authenticate, or nil when the
// request never passed it.
func ClaimsFromCtx(c *fiber.Ctx) *service.JWTCustomClaims {
	claims, _ := c.Locals(localsClaimsKey).(*service.JWTCustomClaims)
	return claims
}
