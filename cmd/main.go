package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gatekit/gatekit/pkg/logx"
	"github.com/gatekit/gatekit/pkg/sso/ssoapi"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

func main() {
	switch getEnv("LOG_LEVEL", "info") {
	case "debug":
		logx.SetLevel(logx.LevelDebug)
	case "warn":
		logx.SetLevel(logx.LevelWarn)
	case "error":
		logx.SetLevel(logx.LevelError)
	default:
		logx.SetLevel(logx.LevelInfo)
	}

	logx.Info("starting gatekit server")

	container := NewContainer()
	defer container.Cleanup()

	app := fiber.New(fiber.Config{
		AppName:               "Gatekit",
		DisableStartupMessage: true,
		ErrorHandler:          ssoapi.ErrorHandler,
		ReadTimeout:           container.Config.Server.ReadTimeout,
		WriteTimeout:          container.Config.Server.WriteTimeout,
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return uuid.NewString()
		},
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: container.Config.Server.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods: "GET, POST, PATCH, DELETE, OPTIONS",
	}))

	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path} | ${ip} | ${reqHeader:X-Request-ID}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Local",
	}))

	app.Get("/health", healthHandler(container))

	container.Api.RegisterRoutes(app)

	app.Use(notFoundHandler)

	startServer(app, container.Config.Server.Port)
}

func healthHandler(container *Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		health := fiber.Map{"status": "healthy"}

		if err := container.Store.Ping(c.Context()); err != nil {
			health["status"] = "degraded"
			health["store"] = "unhealthy"
			health["store_error"] = err.Error()
			return c.Status(fiber.StatusServiceUnavailable).JSON(health)
		}
		health["store"] = "healthy"
		return c.JSON(health)
	}
}

func notFoundHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error":  "Route not found",
		"code":   "NOT_FOUND",
		"path":   c.Path(),
		"method": c.Method(),
	})
}

func startServer(app *fiber.App, port string) {
	go func() {
		logx.Infof("server listening on port %s", port)
		if err := app.Listen(":" + port); err != nil {
			logx.Fatalf("server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigChan
	logx.Infof("received signal %v, shutting down", sig)

	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		logx.Errorf("forced shutdown: %v", err)
	}
	logx.Info("server exited")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
