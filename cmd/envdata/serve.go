package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/agritech-envdata/internal/api/http"
	"github.com/i474232898/agritech-envdata/internal/geo"
	"github.com/i474232898/agritech-envdata/internal/observability"
	"github.com/i474232898/agritech-envdata/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the /api service and refresh tracked locations in the background",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	metrics := observability.NewMetrics()
	c := newClients(cfg)
	layer := newLayer(cfg, c, logger, metrics)

	deps := httpapi.Deps{
		Weather: c.openWeather,
		Soil:    c.agromonitoring,
		Layer:   layer,
		Logger:  logger,
	}
	if cfg.SimulateUpstream {
		logger.Info("upstream simulation enabled; /api answers with synthetic data")
		sim := httpapi.NewSimulated()
		deps.Weather = sim
		deps.Soil = sim
	}
	app := httpapi.NewApp(deps)

	var resolver geo.Resolver
	if cfg.GeocoderAPIKey != "" {
		resolver = geo.NewGoogleResolver(cfg.GeocoderAPIKey)
	}
	locations := scheduler.ResolveLocations(cfg.TrackedLocations, cfg.TrackedCities, resolver, logger)
	sched := scheduler.New(locations, cfg.RefreshInterval, layer, logger)
	defer sched.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The first refresh may fall through to this process's own /api routes,
	// so the scheduler starts only once the listener is up.
	return listenAndServe(ctx, app, ":"+cfg.Port, cfg.ShutdownTimeout, logger, func(fiber.ListenData) error {
		return sched.Start()
	})
}

// listenAndServe runs app until ctx is done, then shuts it down within
// timeout. onListening runs once the listener accepts connections; an error
// from it stops the server.
func listenAndServe(ctx context.Context, app *fiber.App, addr string, timeout time.Duration, logger *zap.Logger, onListening func(fiber.ListenData) error) error {
	listening := make(chan fiber.ListenData, 1)
	app.Hooks().OnListen(func(ld fiber.ListenData) error {
		listening <- ld
		return nil
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		listenErr <- app.Listen(addr)
	}()

	var err error
	select {
	case ld := <-listening:
		if err = onListening(ld); err == nil {
			select {
			case <-ctx.Done():
			case err = <-listenErr:
			}
		}
	case err = <-listenErr:
	case <-ctx.Done():
	}
	if err != nil {
		logger.Error("fiber server stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if serr := app.ShutdownWithContext(shutdownCtx); serr != nil {
		logger.Error("error during shutdown", zap.Error(serr))
	}
	return err
}
