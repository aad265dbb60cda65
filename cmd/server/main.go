package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	accessrequesthandler "apihub/internal/accessrequest/handler"
	accessrequestservice "apihub/internal/accessrequest/service"
	applicationhandler "apihub/internal/application/handler"
	appmetrics "apihub/internal/application/metrics"
	applicationservice "apihub/internal/application/service"
	eventhandler "apihub/internal/event/handler"
	"apihub/internal/platform/config"
	"apihub/internal/platform/health"
	"apihub/internal/platform/logger"
	teamhandler "apihub/internal/team/handler"
	teamservice "apihub/internal/team/service"
	httptransport "apihub/internal/transport/http"
	"apihub/pkg/platform/middleware/auth"
	"apihub/pkg/platform/middleware/request"
)

const shutdownTimeout = 15 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	environments, err := config.LoadEnvironments(cfg.EnvironmentsFile)
	if err != nil {
		return err
	}

	infra, err := newInfrastructure(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close(log)

	stores, err := newStores(ctx, cfg, infra)
	if err != nil {
		return err
	}

	fixer, connector := newScopeFixer(cfg, environments, log)
	events := newEventPublisher(cfg, stores.events, infra, log)

	apps := applicationservice.New(
		stores.applications,
		stores.accessRequests,
		stores.teams,
		events,
		fixer,
		connector,
		applicationservice.WithLogger(log),
		applicationservice.WithMetrics(appmetrics.New()),
		applicationservice.WithLocker(infra.locker, cfg.LockTTL),
		applicationservice.WithNotifier(newNotifier(cfg, infra, log)),
	)
	accessRequests := accessrequestservice.New(stores.accessRequests, apps, events,
		accessrequestservice.WithLogger(log),
		accessrequestservice.WithLocker(infra.locker),
	)
	teams := teamservice.New(stores.teams, events, teamservice.WithLogger(log))

	healthHandler := health.New(cfg.Environment)
	infra.RegisterChecks(healthHandler)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		API: []httptransport.RouteRegistrar{
			applicationhandler.New(apps, log),
			accessrequesthandler.New(accessRequests, log),
			teamhandler.New(teams, log),
			eventhandler.New(stores.events, log),
		},
		Health:         healthHandler,
		Metrics:        promhttp.Handler(),
		Validator:      auth.NewHS256Validator(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.Audience),
		RequestMetrics: request.NewMetrics(),
	}, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server",
			"addr", cfg.Addr,
			"environment", cfg.Environment,
			"identity_environments", len(environments),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
