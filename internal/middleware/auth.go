package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/pixelgenesis/backend/internal/auth"
)

const CtxSession = "session"

// SessionParser проверяет session токен кошелька.
type SessionParser interface {
	ParseSession(token string) (*auth.Claims, error)
}

func AuthMiddleware(sessions SessionParser, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"ok": false, "error": "missing authorization header"})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"ok": false, "error": "invalid authorization format"})
		}

		claims, err := sessions.ParseSession(tokenStr)
		if err != nil {
			log.Debug("session parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"ok": false, "error": "invalid or expired token"})
		}

		c.Locals(CtxSession, claims)

		return c.Next()
	}
}

func GetSession(c *fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals(CtxSession).(*auth.Claims)
	return claims
}

func GetAddress(c *fiber.Ctx) string {
	if claims := GetSession(c); claims != nil {
		return claims.Address
	}
	return ""
}
