package httpapi

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/wearable-weather-sync/internal/datalayer"
	"github.com/i474232898/wearable-weather-sync/internal/datasync"
	"github.com/i474232898/wearable-weather-sync/internal/display"
	"github.com/i474232898/wearable-weather-sync/internal/weather"
)

var validate = validator.New()

// Display is the part of the display machine exposed over HTTP.
type Display interface {
	Status() display.Status
	OnVisibilityChanged(visible bool)
	OnAmbientModeChanged(inAmbient bool)
}

// Deps bundles what the handlers need.
type Deps struct {
	Store    weather.Store
	Queue    *datasync.Queue
	Display  Display
	Gatherer prometheus.Gatherer
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := app.Group("/api/v1")

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		snap, err := d.Store.Get(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read weather state")
		}
		return c.JSON(newSnapshotResponse(snap))
	})

	// Producers without a data layer connection can push batches here; they
	// join the same queue as batches received over NATS.
	v1.Post("/weather/events", func(c *fiber.Ctx) error {
		batch, err := datalayer.Decode(c.Body())
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := d.Queue.Enqueue(c.UserContext(), batch); err != nil {
			if errors.Is(err, datasync.ErrQueueClosed) {
				return fiber.NewError(fiber.StatusServiceUnavailable, "sync queue closed")
			}
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"accepted": len(batch)})
	})

	v1.Get("/display", func(c *fiber.Ctx) error {
		return c.JSON(d.Display.Status())
	})

	v1.Post("/display/visibility", func(c *fiber.Ctx) error {
		var req visibilityRequest
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}
		d.Display.OnVisibilityChanged(*req.Visible)
		return c.JSON(d.Display.Status())
	})

	v1.Post("/display/ambient", func(c *fiber.Ctx) error {
		var req ambientRequest
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}
		d.Display.OnAmbientModeChanged(*req.Ambient)
		return c.JSON(d.Display.Status())
	})
}

// snapshotResponse reports sentinel fields as absent instead of as extreme
// floats.
type snapshotResponse struct {
	WeatherID *int     `json:"weatherID"`
	MaxTemp   *float64 `json:"maxTemp"`
	MinTemp   *float64 `json:"minTemp"`
	Icon      string   `json:"icon"`
}

func newSnapshotResponse(s weather.Snapshot) snapshotResponse {
	resp := snapshotResponse{Icon: string(weather.IconFor(s.ConditionID))}
	if s.HasCondition() {
		id := s.ConditionID
		resp.WeatherID = &id
	}
	if s.HasTemperatures() {
		high, low := s.MaxTemp, s.MinTemp
		resp.MaxTemp = &high
		resp.MinTemp = &low
	}
	return resp
}

type visibilityRequest struct {
	Visible *bool `json:"visible" validate:"required"`
}

type ambientRequest struct {
	Ambient *bool `json:"ambient" validate:"required"`
}

func bindAndValidate(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}
