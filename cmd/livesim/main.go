// livesim: local stand-in for the live API websocket service.
// The console connects to it with --endpoint ws://localhost:8800/live
// and capability invocations are injected over its REST API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/Robert54/live-api-web-console/internal/livesim"
	"github.com/Robert54/live-api-web-console/internal/log"
)

var (
	version = "1.0.0"
	port    = flag.Int("port", 8800, "HTTP server port")
	debug   = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	// Override from environment
	if envPort := os.Getenv("PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", port)
	}

	if *debug {
		log.Init("debug", "text")
	} else {
		log.Init("info", "text")
	}

	app := fiber.New(fiber.Config{
		AppName:               "livesim",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))
	if *debug {
		app.Use(logger.New())
	}

	hub := livesim.NewHub()

	// Session websocket route
	hub.RegisterRoutes(app)

	// REST injection routes
	api := app.Group("/api")
	hub.RegisterAPIRoutes(api)

	// Health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"version":  version,
			"sessions": hub.SessionCount(),
		})
	})

	// Metrics endpoint
	app.Get("/metrics", func(c *fiber.Ctx) error {
		stats := hub.GetStats()
		return c.SendString(fmt.Sprintf(`# HELP livesim_sessions Connected session count
# TYPE livesim_sessions gauge
livesim_sessions %d

# HELP livesim_messages_received Total messages received
# TYPE livesim_messages_received counter
livesim_messages_received %d

# HELP livesim_messages_sent Total messages sent
# TYPE livesim_messages_sent counter
livesim_messages_sent %d

# HELP livesim_tool_responses Total tool responses received
# TYPE livesim_tool_responses counter
livesim_tool_responses %d
`, stats.SessionCount, stats.MessagesReceived, stats.MessagesSent, stats.ToolResponses))
	})

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", *port)
		log.Info("livesim: listening",
			"addr", addr,
			"session", fmt.Sprintf("ws://localhost:%d/live", *port),
			"health", fmt.Sprintf("http://localhost:%d/health", *port),
			"inject", fmt.Sprintf("http://localhost:%d/api/calls", *port))

		if err := app.Listen(addr); err != nil {
			log.Error("livesim: server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("livesim: shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Error("livesim: shutdown error", "error", err)
	}
}
