package httpapi

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-monitor/internal/weather"
)

var validate = validator.New()

// refreshTimeout bounds a forced round triggered over HTTP.
const refreshTimeout = 30 * time.Second

// Engine is the query surface the routes expose.
type Engine interface {
	Current() weather.AggregatedReading
	Refresh(ctx context.Context) weather.AggregatedReading
	Status() []weather.SourceStatus
	ToggleProvider(name string, enabled bool) error
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, engine Engine) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather", func(c *fiber.Ctx) error {
		return c.JSON(engine.Current())
	})

	v1.Post("/weather/refresh", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), refreshTimeout)
		defer cancel()

		return c.JSON(engine.Refresh(ctx))
	})

	v1.Get("/sources", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"sources": engine.Status(),
		})
	})

	v1.Put("/sources/:name", func(c *fiber.Ctx) error {
		var req toggleRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		name, err := url.PathUnescape(c.Params("name"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid source name")
		}
		if err := engine.ToggleProvider(name, *req.Enabled); err != nil {
			if errors.Is(err, weather.ErrUnknownProvider) {
				return fiber.NewError(fiber.StatusNotFound, "unknown source")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to toggle source")
		}

		return c.JSON(fiber.Map{
			"name":    name,
			"enabled": *req.Enabled,
		})
	})
}

// toggleRequest is the body of PUT /sources/:name.
type toggleRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}
