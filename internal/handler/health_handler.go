package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const readinessTimeout = 2 * time.Second

// RegisterHealthRoutes exposes liveness and readiness probes. Readiness
// checks the batch registry and the mint-lock store; the ledger itself is
// deliberately excluded, a slow mirror must not take the API out of rotation.
func RegisterHealthRoutes(app fiber.Router, sqlDB *sql.DB, rdb *redis.Client) {
	app.Get("/livez", LivezHandler())
	app.Get("/readyz", ReadyzHandler(sqlDB, rdb))
}

func LivezHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}

func ReadyzHandler(sqlDB *sql.DB, rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), readinessTimeout)
		defer cancel()

		registryErr := sqlDB.PingContext(ctx)
		lockStoreErr := rdb.Ping(ctx).Err()

		registryStatus := "ok"
		if registryErr != nil {
			registryStatus = "down"
		}
		lockStoreStatus := "ok"
		if lockStoreErr != nil {
			lockStoreStatus = "down"
		}

		status := "ready"
		statusCode := fiber.StatusOK
		if registryErr != nil || lockStoreErr != nil {
			status = "not_ready"
			statusCode = fiber.StatusServiceUnavailable
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"checks": fiber.Map{
				"registry":  registryStatus,
				"lockstore": lockStoreStatus,
			},
		})
	}
}
