package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/ecopulse/ecopulse/internal/app"
	"github.com/ecopulse/ecopulse/internal/scheduler"
	"github.com/ecopulse/ecopulse/internal/store"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(fa *fiber.App, service *app.Service, sched *scheduler.Scheduler) {
	v1 := fa.Group("/api/v1")

	v1.Get("/env/recent", func(c *fiber.Ctx) error {
		var q envQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		rows, err := service.RecentEnv(q.Location, q.Limit)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch environment rows")
		}
		return c.JSON(fiber.Map{
			"location": q.Location,
			"rows":     rows,
		})
	})

	v1.Get("/env/latest", func(c *fiber.Ctx) error {
		var q envQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		row, err := service.LatestEnv(q.Location)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no environment data for requested location")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch environment snapshot")
		}
		return c.JSON(row)
	})

	v1.Get("/macro/series", func(c *fiber.Ctx) error {
		var q seriesQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		rows, err := service.MacroSeries(q.Indicator, q.From, q.To)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch macro series")
		}
		return c.JSON(fiber.Map{
			"indicator": q.Indicator,
			"from":      q.From,
			"to":        q.To,
			"rows":      rows,
		})
	})

	v1.Get("/macro/latest", func(c *fiber.Ctx) error {
		indicator := c.Query("indicator")
		if indicator == "" {
			return fiber.NewError(fiber.StatusBadRequest, "indicator query parameter is required")
		}

		rows, err := service.MacroLatest(indicator)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch macro values")
		}
		return c.JSON(fiber.Map{
			"indicator": indicator,
			"rows":      rows,
		})
	})

	v1.Get("/locations", func(c *fiber.Ctx) error {
		locations, err := service.Locations()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch locations")
		}
		return c.JSON(locations)
	})

	v1.Get("/runs", func(c *fiber.Ctx) error {
		runs, err := service.RecentRuns(parseLimit(c, 20))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch run history")
		}
		return c.JSON(runs)
	})

	v1.Get("/runs/sources", func(c *fiber.Ctx) error {
		runs, err := service.RecentSourceRuns(parseLimit(c, 20))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch source run history")
		}
		return c.JSON(runs)
	})

	v1.Post("/fetch", func(c *fiber.Ctx) error {
		// On-demand fetch runs outside the schedule; the storage layer's
		// write discipline keeps it safe alongside a running scheduler.
		go func() {
			if err := service.FetchAll(context.Background()); err != nil {
				// Already recorded in the run log.
				_ = err
			}
		}()
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
	})

	v1.Get("/scheduler", func(c *fiber.Ctx) error {
		iv := service.Intervals()
		return c.JSON(fiber.Map{
			"running": sched.Running(),
			"intervals": fiber.Map{
				"environmentSeconds": int(iv.Environment / time.Second),
				"macroSeconds":       int(iv.Macro / time.Second),
				"wikipediaSeconds":   int(iv.Wikipedia / time.Second),
			},
		})
	})

	v1.Post("/scheduler/start", func(c *fiber.Ctx) error {
		sched.Start(c.UserContext())
		return c.JSON(fiber.Map{"running": sched.Running()})
	})

	v1.Post("/scheduler/stop", func(c *fiber.Ctx) error {
		sched.Stop()
		return c.JSON(fiber.Map{"running": sched.Running()})
	})

	v1.Put("/scheduler/intervals", func(c *fiber.Ctx) error {
		var req intervalsRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		iv := app.Intervals{
			Environment: time.Duration(req.EnvironmentSeconds) * time.Second,
			Macro:       time.Duration(req.MacroSeconds) * time.Second,
			Wikipedia:   time.Duration(req.WikipediaSeconds) * time.Second,
		}
		if err := service.SetIntervals(iv); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(fiber.Map{"status": "updated"})
	})
}

// envQuery holds query parameters for the environment endpoints.
type envQuery struct {
	Location string `validate:"required"`
	Limit    int    `validate:"gte=1,lte=500"`
}

func (q *envQuery) bind(c *fiber.Ctx) error {
	q.Location = c.Query("location")
	q.Limit = c.QueryInt("limit", 48)
	return validate.Struct(q)
}

// seriesQuery holds query parameters for the macro series endpoint.
type seriesQuery struct {
	Indicator string `validate:"required"`
	From      int    `validate:"gte=1900"`
	To        int    `validate:"gtefield=From"`
}

func (q *seriesQuery) bind(c *fiber.Ctx) error {
	q.Indicator = c.Query("indicator")
	q.From = c.QueryInt("from", 2000)
	q.To = c.QueryInt("to", time.Now().UTC().Year())
	return validate.Struct(q)
}

// intervalsRequest is the body for runtime interval updates, in whole
// seconds to match the deployment knobs.
type intervalsRequest struct {
	EnvironmentSeconds int `json:"environmentSeconds" validate:"gte=1"`
	MacroSeconds       int `json:"macroSeconds" validate:"gte=1"`
	WikipediaSeconds   int `json:"wikipediaSeconds" validate:"gte=1"`
}

func parseLimit(c *fiber.Ctx, def int) int {
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			return n
		}
	}
	return def
}
