package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pixelgenesis/backend/internal/config"
	"github.com/pixelgenesis/backend/internal/http/handlers"
	"github.com/pixelgenesis/backend/internal/middleware"
)

type Handlers struct {
	Auth         *handlers.AuthHandler
	DID          *handlers.DIDHandler
	Credential   *handlers.CredentialHandler
	Presentation *handlers.PresentationHandler
	WSHub        *handlers.WSHub
}

// SetupRouter монтирует маршруты в корень (/auth, /did, /vc, /vp).
// rdb может быть nil - тогда rate limit отключён.
func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	sessions middleware.SessionParser,
	h Handlers,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Auth (nonce challenge)
	authGroup := app.Group("/auth")
	if rdb != nil {
		authGroup.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute))
	}
	authGroup.Post("/nonce", h.Auth.Nonce)
	authGroup.Post("/verify", h.Auth.Verify)
	authGroup.Get("/session", middleware.AuthMiddleware(sessions, log), h.Auth.Session)

	// DID management
	did := app.Group("/did")
	did.Post("/issuer", h.DID.CreateIssuer)
	did.Post("/citizen", h.DID.CreateCitizen)
	did.Get("/list", h.DID.List)
	did.Get("/resolve/:did", h.DID.Resolve)

	// Credentials
	vc := app.Group("/vc")
	vc.Post("/issue", h.Credential.Issue)
	vc.Post("/verify", h.Credential.Verify)

	// Presentations
	vp := app.Group("/vp")
	vp.Post("/request", h.Presentation.Request)
	vp.Post("/present", h.Presentation.Present)
	vp.Post("/verify", h.Presentation.Verify)

	// WebSocket
	if h.WSHub != nil {
		app.Use("/ws", handlers.WSUpgradeMiddleware())
		app.Get("/ws", websocket.New(h.WSHub.HandleWS))
	}
}
