package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	httpapi "github.com/i474232898/weather-map/internal/api/http"
	"github.com/i474232898/weather-map/internal/config"
	"github.com/i474232898/weather-map/internal/scheduler"
	"github.com/i474232898/weather-map/internal/store"
	"github.com/i474232898/weather-map/internal/viewstate"
	"github.com/i474232898/weather-map/internal/weather/providers"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	backoff := providers.BackoffConfig{
		MaxRetries:      cfg.ProviderMaxRetries,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
	// Worst case for one provider call, retries and sleeps included.
	callBudget := backoff.Budget(cfg.HTTPTimeout)

	// One provider serves both geocoding and forecasts.
	owm := providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherBaseURL, cfg.OpenWeatherAPIKey,
		providers.WithBackoff(backoff))

	// Every browser session gets its own view state controller.
	newController := func(obs viewstate.Observer) *viewstate.Controller {
		return viewstate.New(owm, owm, cfg.DefaultLocation,
			viewstate.WithObserver(obs),
			viewstate.WithFetchTimeout(callBudget),
		)
	}
	sessions := store.NewMemoryStore(ctx, newController, cfg.MaxSessions, cfg.SessionMaxIdle)
	defer sessions.Close()

	// Scheduler that periodically drops idle sessions.
	sched := scheduler.New(sessions, cfg.SessionPruneInterval)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weather-map",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// Searches wait for the geocoding call.
		WriteTimeout: callBudget + 5*time.Second,
		ErrorHandler: httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"service":  "weather-map",
			"sessions": sessions.Len(),
		})
	})

	httpapi.RegisterRoutes(app, sessions, httpapi.MapSettings{
		TileURL:     cfg.TileURL,
		Attribution: cfg.TileAttribution,
		Zoom:        cfg.MapZoom,
		Center:      cfg.DefaultLocation,
	})

	go func() {
		log.Printf("INFO: weather-map listening on :%s", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
