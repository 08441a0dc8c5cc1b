// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "impostor/docs" // swagger docs
	"impostor/internal/cache"
	"impostor/internal/config"
	"impostor/internal/database"
	"impostor/internal/middleware"
	"impostor/internal/models"
	"impostor/internal/notifications"
	"impostor/internal/payment"
	"impostor/internal/repository"
	"impostor/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// wireableHub is implemented by every WebSocket hub that can be wired to
// Redis pub/sub and gracefully shut down.
type wireableHub interface {
	Name() string
	StartWiring(ctx context.Context, n *notifications.Notifier) error
	Shutdown(ctx context.Context) error
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	userRepo       repository.UserRepository
	roomRepo       repository.RoomRepository
	themeRepo      repository.ThemeRepository
	notifier       *notifications.Notifier
	roomHub        *notifications.RoomHub
	hubs           []wireableHub
	roomService    *service.RoomService
	themeService   *service.ThemeService
	paymentService *service.PaymentService

	// In-process cache for consumed ws tickets. The websocket upgrade runs
	// the middleware chain more than once, but GETDEL burns the ticket on
	// the first pass, so later passes resolve against this cache.
	consumedTicketsMu sync.Mutex
	consumedTickets   map[string]consumedTicketEntry
}

type consumedTicketEntry struct {
	userID    uint
	consumeAt time.Time
}

const consumedTicketGrace = 30 * time.Second

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and
// optionally performs explicit seeding.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	// Keep the package-level cache client in sync so ticket and theme
	// caching go through the same connection.
	cache.SetClient(redisClient)

	userRepo := repository.NewUserRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	themeRepo := repository.NewThemeRepository(db)

	prom := middleware.InitMetrics("impostor-api")

	server := &Server{
		config:          cfg,
		db:              db,
		redis:           redisClient,
		promMiddleware:  prom,
		userRepo:        userRepo,
		roomRepo:        roomRepo,
		themeRepo:       themeRepo,
		consumedTickets: make(map[string]consumedTicketEntry),
	}

	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
	}

	server.themeService = service.NewThemeService(themeRepo)
	idleAfter := time.Duration(cfg.RoomIdleMinutes) * time.Minute
	var publisher service.RoomEventPublisher
	if server.notifier != nil {
		publisher = server.notifier
	}
	server.roomService = service.NewRoomService(roomRepo, server.themeService, publisher, idleAfter)

	provider := payment.NewClient(cfg.PaymentAPIURL, cfg.PaymentAPIKey)
	server.paymentService = service.NewPaymentService(themeRepo, provider, cfg.ThemePriceCents)

	if redisClient != nil {
		server.roomHub = notifications.NewRoomHub(server.roomService, server.notifier)
		server.hubs = []wireableHub{server.roomHub}
	} else {
		// Without Redis the hub still serves in-process sockets.
		server.roomHub = notifications.NewRoomHub(server.roomService, nil)
	}

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit
	// (e.g. limiter) so browser clients still receive CORS headers on error
	// responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Impostor Backend Metrics Dashboard",
	}))

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/logout", s.Logout)

	// Public theme routes
	themes := api.Group("/themes")
	themes.Get("/public", s.ListPublicThemes)
	themes.Get("/:code", middleware.RateLimit(
		s.redis, 30, time.Minute, "resolve_theme"), s.ResolveTheme)

	// Payment webhook: called by the provider, authenticated by shared key,
	// never by end users.
	api.Post("/payments/webhook", s.PaymentWebhook)

	// Protected routes
	protected := api.Group("", s.AuthRequired())

	// WebSocket ticket issuance
	api.Post("/ws/ticket", s.AuthRequired(), s.IssueWSTicket)

	// Theme authoring and unlocking
	protectedThemes := protected.Group("/themes")
	protectedThemes.Post("/", middleware.RateLimit(
		s.redis, 5, 10*time.Minute, "create_theme"), s.CreateTheme)
	protectedThemes.Post("/:id/unlock", middleware.RateLimit(
		s.redis, 5, time.Minute, "unlock_theme"), s.CreateThemeIntent)

	// Room routes
	rooms := protected.Group("/rooms")
	rooms.Post("/", middleware.RateLimit(
		s.redis, 10, time.Minute, "create_room"), s.CreateRoom)
	// Define specific /:code/:resource routes BEFORE generic /:code route
	rooms.Post("/:code/join", s.JoinRoom)
	rooms.Post("/:code/leave", s.LeaveRoom)
	rooms.Post("/:code/connected", s.SetConnected)
	rooms.Post("/:code/start", s.StartGame)
	rooms.Post("/:code/answers", s.SubmitAnswer)
	rooms.Post("/:code/votes", s.CastVote)
	rooms.Post("/:code/answers/reveal", s.RevealAnswers)
	rooms.Post("/:code/votes/reveal", s.RevealVotes)
	rooms.Post("/:code/end", s.EndRound)
	rooms.Get("/:code", s.GetRoom)

	// Websocket endpoint - protected by AuthRequired (ticket flow)
	ws := api.Group("/ws", s.AuthRequired())
	ws.Get("/room", s.WebSocketRoomHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// Redis is required for cross-process fanout and ws tickets.
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status":  overallStatus,
		"version": "1.0.0",
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(uint)

		user, err := s.userRepo.GetByID(c.UserContext(), userID)
		if err != nil {
			return models.RespondWithError(c, models.StatusForError(err), err)
		}
		if !user.IsAdmin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewUnauthorizedError("Admin access required"))
		}

		return c.Next()
	}
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		isWSPath := strings.HasPrefix(path, "/api/ws")

		// 1. Try WebSocket ticket first (short-lived, single-use)
		ticket := c.Query("ticket")
		if ticket != "" {
			if userID, ok := s.resolveWSTicket(c.Context(), ticket); ok {
				c.Locals("userID", userID)
				c.Locals("wsTicket", ticket)
				ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, userID)
				c.SetUserContext(ctx)
				return c.Next()
			}
			// If ticket was provided but invalid/expired, fail on WS paths
			if isWSPath {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
		}

		// 2. Fall back to JWT Bearer token
		authHeader := c.Get("Authorization")
		tokenString := ""
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
			}
			return []byte(s.config.JWTSecret), nil
		})

		if err != nil || !token.Valid {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token claims"))
		}

		if issuer, issuerOk := claims["iss"].(string); !issuerOk || issuer != "impostor-api" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token issuer"))
		}
		if audience, audienceOk := claims["aud"].(string); !audienceOk || audience != "impostor-client" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token audience"))
		}

		sub, ok := claims["sub"].(string)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid subject claim"))
		}

		userID, err := strconv.ParseUint(sub, 10, 32)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid user ID in token"))
		}

		// Check JTI for revocation
		if jti, exists := claims["jti"].(string); exists && jti != "" {
			if s.redis != nil {
				isBlacklisted, err := s.redis.Exists(c.Context(), "blacklist:"+jti).Result()
				if err == nil && isBlacklisted > 0 {
					return models.RespondWithError(c, fiber.StatusUnauthorized,
						models.NewUnauthorizedError("Token has been revoked"))
				}
			}
		}

		c.Locals("userID", uint(userID))
		ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, uint(userID))
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// resolveWSTicket resolves a single-use ticket against Redis (GETDEL) or
// the in-process cache of tickets consumed during an earlier middleware pass.
func (s *Server) resolveWSTicket(ctx context.Context, ticket string) (uint, bool) {
	s.consumedTicketsMu.Lock()
	if entry, ok := s.consumedTickets[ticket]; ok {
		if time.Since(entry.consumeAt) < consumedTicketGrace {
			s.consumedTicketsMu.Unlock()
			return entry.userID, true
		}
		delete(s.consumedTickets, ticket)
	}
	s.consumedTicketsMu.Unlock()

	if s.redis == nil {
		return 0, false
	}
	userIDStr, err := cache.ConsumeWSTicket(ctx, ticket)
	if err != nil {
		return 0, false
	}
	userID, err := strconv.ParseUint(userIDStr, 10, 32)
	if err != nil {
		return 0, false
	}

	s.consumedTicketsMu.Lock()
	if s.consumedTickets == nil {
		s.consumedTickets = make(map[string]consumedTicketEntry)
	}
	s.consumedTickets[ticket] = consumedTicketEntry{userID: uint(userID), consumeAt: time.Now()}
	s.consumedTicketsMu.Unlock()

	return uint(userID), true
}

// consumeWSTicket drops a ticket from the in-process cache once the
// websocket handshake has finished with it.
func (s *Server) consumeWSTicket(_ context.Context, ticket interface{}) {
	str, ok := ticket.(string)
	if !ok || str == "" {
		return
	}
	s.consumedTicketsMu.Lock()
	delete(s.consumedTickets, str)
	s.consumedTicketsMu.Unlock()
}

// playerUID derives the player identifier used in room rosters from the
// authenticated user in locals.
func (s *Server) playerUID(c *fiber.Ctx) string {
	userID, _ := c.Locals("userID").(uint)
	return strconv.FormatUint(uint64(userID), 10)
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := fiber.New(fiber.Config{
		AppName: "Impostor API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	// Wire all hubs to Redis subscriber if available
	if s.notifier != nil {
		for _, h := range s.hubs {
			h := h
			go func() {
				if err := h.StartWiring(s.shutdownCtx, s.notifier); err != nil {
					log.Printf("failed to start %s wiring: %v", h.Name(), err)
				}
			}()
		}
	}

	// Sweep idle rooms in the background
	s.roomService.StartReaper(s.shutdownCtx, 10*time.Minute)

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if s.roomHub != nil {
		if err := s.roomHub.Shutdown(ctx); err != nil {
			log.Printf("error shutting down %s: %v", s.roomHub.Name(), err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
