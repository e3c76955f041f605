package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
	"gorm.io/gorm"

	"euphony/internal/config"
	"euphony/internal/database"
	"euphony/internal/events"
	"euphony/internal/handlers"
	"euphony/internal/identity"
	"euphony/internal/lock"
	"euphony/internal/logging"
	"euphony/internal/metrics"
	"euphony/internal/middleware"
	"euphony/internal/repositories"
	"euphony/internal/services"
	"euphony/pkg/rabbitmq"
)

func main() {
	v, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Env, cfg.LogLevel)

	a, err := newApp(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize application")
	}
	defer a.close()

	if a.mq != nil {
		go a.consumeAudit(cfg.RabbitMQAuditQueue)
	}

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go a.listen(cfg.AppPort, quit)

	<-quit
	log.Info("Shutting down server...")
	if err := a.fiber.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.WithError(err).Error("Error during Fiber shutdown")
	}
	log.Info("Server gracefully stopped")
}

// application holds the wired HTTP app and the resources released at
// shutdown.
type application struct {
	fiber   *fiber.App
	log     *logrus.Logger
	db      *gorm.DB
	gateway identity.Gateway
	mq      *rabbitmq.Client
	redis   *redis.Client
}

func newApp(cfg *config.Config, log *logrus.Logger) (_ *application, err error) {
	a := &application{log: log}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	// --- Database ---
	a.db, err = database.Open(database.Config{
		Driver:       cfg.DBDriver,
		DSN:          cfg.DatabaseDSN,
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	}, log)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(a.db); err != nil {
		return nil, err
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	// --- Identity provider ---
	switch cfg.IdentityProvider {
	case "keycloak":
		a.gateway, err = identity.NewKeycloak(cfg.Keycloak, logging.Component(log, "keycloak"), m)
		if err != nil {
			return nil, err
		}
	default:
		log.Warn("Using the in-memory identity provider; identities are lost on restart")
		a.gateway = identity.NewMemory(cfg.Keycloak.DefaultRole, cfg.Keycloak.DefaultRole, cfg.AdminRole)
	}

	// --- Per-user lock ---
	var locker lock.Locker
	switch cfg.UserLock {
	case "redis":
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err = a.redis.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		locker = lock.NewRedis(a.redis, cfg.LockTTL, cfg.LockTTL)
	case "none":
		locker = lock.Noop{}
	default:
		locker = lock.NewLocal()
	}

	// --- Event bus ---
	bus := events.NewBus(logging.Component(log, "events"), m)
	if cfg.RabbitMQEnabled {
		a.mq, err = rabbitmq.NewClient(rabbitmq.Config{
			URL:      cfg.RabbitMQURL,
			Exchange: cfg.RabbitMQExchange,
		}, logging.Component(log, "rabbitmq"))
		if err != nil {
			return nil, err
		}
		bus.Subscribe("*", events.AMQPRelay(a.mq))
	}

	// --- Repositories ---
	userRepo := repositories.NewGORMUserRepository(a.db)
	roleRepo := repositories.NewGORMRoleRepository(a.db)
	profileRepo := repositories.NewGORMProfileRepository(a.db)
	playlistRepo := repositories.NewGORMPlaylistRepository(a.db)
	membershipRepo := repositories.NewGORMMembershipRepository(a.db)
	catalogRepo := repositories.NewGORMCatalogRepository(a.db)

	// --- Services ---
	userService := services.NewUserService(services.UserServiceDeps{
		Users:     userRepo,
		Roles:     roleRepo,
		Profiles:  profileRepo,
		Playlists: playlistRepo,
		Gateway:   a.gateway,
		Locker:    locker,
		Bus:       bus,
		Logger:    logging.Component(log, "users"),
		Metrics:   m,
	})
	userService.RegisterListeners(bus)
	profileService := services.NewProfileService(profileRepo, bus, logging.Component(log, "profiles"))
	identityService := services.NewIdentityService(a.gateway, logging.Component(log, "identity"))
	playlistService := services.NewPlaylistService(playlistRepo, membershipRepo, userRepo, catalogRepo, logging.Component(log, "playlists"))
	catalogService := services.NewCatalogService(catalogRepo)

	// --- Handlers ---
	httpLog := logging.Component(log, "http")
	userHandler := handlers.NewUserHandler(userService, httpLog)
	profileHandler := handlers.NewProfileHandler(profileService, httpLog)
	identityHandler := handlers.NewIdentityHandler(identityService, httpLog)
	playlistHandler := handlers.NewPlaylistHandler(playlistService, httpLog)
	catalogHandler := handlers.NewCatalogHandler(catalogService, httpLog)

	// --- Fiber app ---
	app := fiber.New(fiber.Config{DisableStartupMessage: cfg.Env != "development"})
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{Output: log.Writer()}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"rabbitMQ": a.mq != nil,
		})
	})
	if m != nil {
		app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	apiV1 := app.Group("/api/v1")
	var adminGuards []fiber.Handler
	if cfg.AuthEnabled {
		verifier, err := middleware.NewVerifier(cfg.JWTSecret, cfg.JWTPublicKey, cfg.Keycloak.ClientID, logging.Component(log, "auth"))
		if err != nil {
			return nil, err
		}
		apiV1.Use(middleware.AuthRequired(verifier))
		adminGuards = append(adminGuards, middleware.RequireRole(cfg.AdminRole))
	} else {
		log.Warn("Authentication is disabled")
	}

	userHandler.RegisterRoutes(apiV1)
	profileHandler.RegisterRoutes(apiV1)
	identityHandler.RegisterRoutes(apiV1, adminGuards...)
	playlistHandler.RegisterRoutes(apiV1)
	catalogHandler.RegisterRoutes(apiV1)

	a.fiber = app
	return a, nil
}

// listen serves HTTP until shutdown. A listener failure is reported on quit
// so the regular shutdown path releases every resource.
func (a *application) listen(addr string, quit chan<- os.Signal) {
	a.log.Infof("Starting server on port %s", addr)
	if err := a.fiber.Listen(addr); err != nil {
		a.log.WithError(err).Error("Server failed to start")
		select {
		case quit <- syscall.SIGTERM:
		default:
		}
	}
}

// consumeAudit logs every event relayed to the exchange.
func (a *application) consumeAudit(queue string) {
	auditLog := logging.Component(a.log, "audit")
	auditLog.Infof("Starting audit consumer on queue %s", queue)
	err := a.mq.Consume(queue, "#", func(msg amqp.Delivery) error {
		var payload map[string]interface{}
		if err := json.Unmarshal(msg.Body, &payload); err != nil {
			return fmt.Errorf("malformed event %s: %w", msg.RoutingKey, err)
		}
		auditLog.WithField("event", msg.RoutingKey).WithField("payload", payload).Info("Domain event")
		return nil
	})
	if err != nil {
		auditLog.WithError(err).Error("Failed to start audit consumer")
	}
}

// close releases every resource newApp acquired.
func (a *application) close() {
	if a.gateway != nil {
		if err := a.gateway.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close identity provider client")
		}
	}
	if a.mq != nil {
		if err := a.mq.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close RabbitMQ client")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close redis client")
		}
	}
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			a.log.WithError(err).Warn("Failed to close database")
		}
	}
}
