package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	httpapi "github.com/i474232898/wearable-weather-sync/internal/api/http"
	"github.com/i474232898/wearable-weather-sync/internal/datalayer"
	"github.com/i474232898/wearable-weather-sync/internal/datasync"
	"github.com/i474232898/wearable-weather-sync/internal/display"
	"github.com/i474232898/wearable-weather-sync/internal/metrics"
	"github.com/i474232898/wearable-weather-sync/internal/render"
	"github.com/i474232898/wearable-weather-sync/internal/scheduler"
	"github.com/i474232898/wearable-weather-sync/internal/store"
	"github.com/i474232898/wearable-weather-sync/internal/weather"
)

type WatchCmd struct {
	Ambient bool `help:"Start in ambient mode."`
	NoClear bool `name:"no-clear" help:"Append frames instead of redrawing the screen."`
	Quiet   bool `help:"Do not draw frames to stdout."`
}

func (w *WatchCmd) Run(g *Globals) error {
	cfg, log := g.Config, g.Log

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	st, closeStore, err := openStore(cfg.StorePath)
	if err != nil {
		return err
	}
	defer closeStore()

	conn, err := datalayer.Dial(cfg.NATSURL, "weather-face")
	if err != nil {
		return err
	}
	defer conn.Close()

	// Sync runs on its own goroutine so connection waits never stall redraws.
	queue := datasync.NewQueue(cfg.QueueSize)
	connector := datasync.NewGuardedConnector(datalayer.NewConnector(conn), cfg.ConnectTimeout)
	handler := datasync.NewHandler(st, connector, m, log.Named("sync"))
	handlerDone := make(chan struct{})
	go func() {
		defer close(handlerDone)
		handler.Run(ctx, queue)
	}()

	sub := datalayer.NewSubscriber(conn, cfg.Subject, queue, log.Named("datalayer"))
	if err := sub.Start(ctx); err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if w.Quiet {
		out = io.Discard
	}
	machine := display.New(st, render.NewTerminal(out, !w.NoClear),
		display.WithZoneSource(cfg.Zone),
		display.WithLogger(log.Named("display")),
		display.WithMetrics(m),
	)
	machine.OnCreate(ctx)
	machine.OnVisibilityChanged(true)
	if w.Ambient {
		machine.OnAmbientModeChanged(true)
	}

	sched := scheduler.New(machine, cfg.HostTickInterval, log.Named("host"))
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	app := newApp()
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Store:    st,
		Queue:    queue,
		Display:  machine,
		Gatherer: reg,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Errorw("fiber server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Errorw("error during shutdown", "error", err)
	}
	if err := sub.Stop(); err != nil {
		log.Warnw("drain subscription", "error", err)
	}
	queue.Close()
	<-handlerDone

	sched.Stop()
	machine.OnDestroy()
	return nil
}

func openStore(path string) (weather.Store, func(), error) {
	if path == "" {
		return store.NewMemoryStore(), func() {}, nil
	}
	s, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open state store: %w", err)
	}
	return s, func() { _ = s.Close() }, nil
}

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "weather-face",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
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

	// Frames own stdout.
	app.Use(logger.New(logger.Config{Output: os.Stderr}))
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-face",
		})
	})
	return app
}
