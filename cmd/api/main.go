package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pixelgenesis/backend/internal/config"
	"github.com/pixelgenesis/backend/internal/db"
	"github.com/pixelgenesis/backend/internal/did"
	"github.com/pixelgenesis/backend/internal/events"
	apphttp "github.com/pixelgenesis/backend/internal/http"
	"github.com/pixelgenesis/backend/internal/http/dto"
	"github.com/pixelgenesis/backend/internal/http/handlers"
	"github.com/pixelgenesis/backend/internal/jwtvc"
	"github.com/pixelgenesis/backend/internal/middleware"
	"github.com/pixelgenesis/backend/internal/nonce"
	"github.com/pixelgenesis/backend/internal/repositories"
	"github.com/pixelgenesis/backend/internal/services"
)

// clockSkew - допустимое расхождение часов при проверке nbf/exp у VC/VP.
const clockSkew = time.Minute

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	var (
		identifierRepo did.IdentifierStore
		auditRepo      services.AuditRepository
		walletRepo     services.WalletRepository
		pool           *pgxpool.Pool
	)
	if cfg.StoreBackend == "memory" {
		identifierRepo = repositories.NewMemoryIdentifierRepo()
		auditRepo = repositories.NewMemoryAuditRepo()
		walletRepo = repositories.NewMemoryWalletRepo()
	} else {
		var err error
		pool, err = db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
		if err != nil {
			log.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()

		applied, err := db.RunMigrations(ctx, pool, cfg.MigrationsDir, log)
		if err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
		log.Info("migrations done", zap.Int("applied", applied))

		identifierRepo = repositories.NewIdentifierRepo(pool)
		auditRepo = repositories.NewAuditRepo(pool)
		walletRepo = repositories.NewWalletRepo(pool)
	}

	// Nonce store + events
	var (
		rdb        *redis.Client
		nonces     nonce.Store
		publisher  events.Publisher
		subscriber events.Subscriber
	)
	if cfg.NonceBackend == "memory" {
		log.Warn("NONCE_BACKEND=memory: nonces are per-process, rate limiting disabled")
		nonces = nonce.NewMemoryStore(cfg.NonceTTL)
		bus := events.NewLocalBus()
		publisher, subscriber = bus, bus
	} else {
		var err error
		rdb, err = db.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()

		nonces = nonce.NewRedisStore(rdb, cfg.NonceTTL)
		publisher = events.NewRedisPublisher(rdb, log)
		subscriber = events.NewRedisSubscriber(rdb, log)
	}

	// DID management
	manager := did.NewManager(identifierRepo, did.NewSecretBox(cfg.KMSSecretKey), cfg.DIDProvider(), log)
	verifier := jwtvc.NewVerifier(manager, clockSkew)

	// Services
	authService := services.NewAuthService(nonces, walletRepo, auditRepo, publisher, cfg, log)
	didService := services.NewDIDService(manager, auditRepo, publisher, cfg, log)
	credentialService := services.NewCredentialService(didService, manager, auditRepo, publisher, cfg, log)
	disclosureService := services.NewDisclosureService()
	presentationService := services.NewPresentationService(manager, auditRepo, publisher, cfg, log)
	verificationService := services.NewVerificationService(verifier, auditRepo, publisher, cfg, log)

	// Handlers
	wsHub := handlers.NewWSHub(authService, subscriber, log)
	if err := wsHub.Start(ctx); err != nil {
		log.Fatal("failed to start ws hub", zap.Error(err))
	}

	h := apphttp.Handlers{
		Auth:         handlers.NewAuthHandler(authService, log),
		DID:          handlers.NewDIDHandler(didService, log),
		Credential:   handlers.NewCredentialHandler(credentialService, verificationService, log),
		Presentation: handlers.NewPresentationHandler(disclosureService, presentationService, verificationService, log),
		WSHub:        wsHub,
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			msg := "internal server error"
			if code < fiber.StatusInternalServerError {
				msg = err.Error()
			} else {
				log.Error("unhandled error",
					zap.String("request_id", middleware.GetRequestID(c)),
					zap.String("path", c.Path()),
					zap.Error(err),
				)
			}
			return c.Status(code).JSON(dto.ErrorResponse{Error: msg, RequestID: middleware.GetRequestID(c)})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authService, h)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server",
		zap.String("addr", addr),
		zap.String("did_provider", cfg.DIDProvider()),
		zap.String("store", cfg.StoreBackend),
		zap.String("nonce_store", cfg.NonceBackend),
	)
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
