package main

import (
	"context"
	"io/fs"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/template/html/v2"
	"github.com/google/uuid"

	httpapi "github.com/weatherfront/weatherfront/internal/api/http"
	"github.com/weatherfront/weatherfront/internal/auth"
	"github.com/weatherfront/weatherfront/internal/cache"
	"github.com/weatherfront/weatherfront/internal/config"
	"github.com/weatherfront/weatherfront/internal/scheduler"
	"github.com/weatherfront/weatherfront/internal/store"
	"github.com/weatherfront/weatherfront/internal/weather"
	"github.com/weatherfront/weatherfront/internal/weather/openmeteo"
	"github.com/weatherfront/weatherfront/web"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Persistence for users, cities and search history.
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	// Outbound clients, each bounded by its own fixed timeout.
	geoClient := openmeteo.NewGeocodingClient(&http.Client{Timeout: cfg.GeocodingTimeout}, cfg.GeocodingURL)
	forecastClient := openmeteo.NewForecastClient(&http.Client{Timeout: cfg.ForecastTimeout}, cfg.ForecastURL)

	// Shared autocomplete cache with a background janitor sweeping
	// expired entries.
	autocomplete := cache.New(cfg.AutocompleteTTL)
	janitor := scheduler.New(autocomplete, cfg.CacheSweepInterval)
	if err := janitor.Start(); err != nil {
		log.Fatalf("failed to start cache janitor: %v", err)
	}
	defer janitor.Stop()

	// Core service orchestrating the lookup pipeline.
	service := weather.NewService(geoClient, forecastClient, db, autocomplete, cfg.AutocompleteLimit)

	// Templates are embedded; fiber renders them by name.
	templates, err := fs.Sub(web.Templates, "templates")
	if err != nil {
		log.Fatalf("failed to load templates: %v", err)
	}
	engine := html.NewFileSystem(http.FS(templates), ".html")

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "weatherfront",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		Views:                 engine,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weatherfront",
		})
	})

	sessions := session.New(session.Config{
		Expiration:     cfg.SessionTTL,
		CookieHTTPOnly: true,
	})

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	if cfg.JWTSecret == "" {
		log.Printf("INFO: JWT_SECRET not set; API tokens will not survive restarts securely")
	}

	// HTTP routes.
	httpapi.RegisterRoutes(app, &httpapi.Handlers{
		Service:  service,
		Store:    db,
		Sessions: sessions,
		Tokens:   tokens,
	})

	// Start server with graceful shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
