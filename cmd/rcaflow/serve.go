package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"rcaflow/internal/analysis"
	analysismetrics "rcaflow/internal/analysis/metrics"
	analysisservice "rcaflow/internal/analysis/service"
	"rcaflow/internal/audit"
	"rcaflow/internal/auth"
	authmetrics "rcaflow/internal/auth/metrics"
	"rcaflow/internal/auth/revocation"
	authservice "rcaflow/internal/auth/service"
	"rcaflow/internal/auth/token"
	"rcaflow/internal/events"
	eventsmetrics "rcaflow/internal/events/metrics"
	eventsservice "rcaflow/internal/events/service"
	"rcaflow/internal/evidence"
	evidencemetrics "rcaflow/internal/evidence/metrics"
	evidenceservice "rcaflow/internal/evidence/service"
	"rcaflow/internal/evidence/storage"
	httpapi "rcaflow/internal/http"
	"rcaflow/internal/notify"
	notifymetrics "rcaflow/internal/notify/metrics"
	"rcaflow/internal/platform/config"
	"rcaflow/internal/platform/httpserver"
	"rcaflow/internal/platform/logger"
	"rcaflow/internal/platform/metrics"
	"rcaflow/internal/ratelimit"
	ratelimitmetrics "rcaflow/internal/ratelimit/metrics"
	"rcaflow/internal/ratelimit/window"
	"rcaflow/internal/report"
	reportservice "rcaflow/internal/report/service"
	"rcaflow/internal/tenancy"
	tenancymetrics "rcaflow/internal/tenancy/metrics"
	tenancyservice "rcaflow/internal/tenancy/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the HTTP API with the document store selected by STORE_BACKEND.
Redis, Kafka and SFTP are used when configured. The process stops gracefully
on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	auditor, err := newAuditPublisher(ctx, cfg, in, log)
	if err != nil {
		return err
	}
	defer auditor.Close()

	tenancySvc := tenancy.NewService(in.backend,
		tenancyservice.WithLogger(log),
		tenancyservice.WithAuditPublisher(auditor),
		tenancyservice.WithMetrics(tenancymetrics.New(reg)),
		tenancyservice.WithBcryptCost(cfg.Auth.BcryptCost),
	)

	notifier := notify.New(tenancySvc, notify.NewMailer(cfg.Email, log),
		notify.WithLogger(log),
		notify.WithMetrics(notifymetrics.New(reg)),
		notify.WithQueueSize(cfg.Email.QueueSize),
		notify.WithBaseURL(cfg.Email.AppBaseURL),
	)
	defer notifier.Close()

	eventsSvc := events.NewService(in.backend, tenancySvc,
		eventsservice.WithLogger(log),
		eventsservice.WithNotifier(notifier),
		eventsservice.WithAuditPublisher(auditor),
		eventsservice.WithMetrics(eventsmetrics.New(reg)),
	)
	analysisSvc := analysis.NewService(in.backend, eventsSvc,
		analysisservice.WithLogger(log),
		analysisservice.WithNotifier(notifier),
		analysisservice.WithAuditPublisher(auditor),
		analysisservice.WithMetrics(analysismetrics.New(reg)),
		analysisservice.WithTracer(otel.Tracer("rcaflow/internal/analysis")),
		analysisservice.WithEfficacyDelay(cfg.Workflow.EfficacyDelay),
	)

	objects, err := storage.FromConfig(cfg.Storage, log)
	if err != nil {
		return err
	}
	defer objects.Close()
	evidenceSvc := evidence.NewService(analysisSvc, objects,
		evidenceservice.WithLogger(log),
		evidenceservice.WithMetrics(evidencemetrics.New(reg)),
		evidenceservice.WithMaxBytes(cfg.Storage.MaxUploadBytes),
		evidenceservice.WithAllowedContentTypes(cfg.Storage.AllowedContentTypes),
	)
	reportSvc := report.NewService(analysisSvc, eventsSvc, reportservice.WithLogger(log))

	tokens := token.NewService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	var revocations authservice.RevocationList = revocation.NewMemoryList()
	if in.redis != nil {
		revocations = revocation.NewRedisList(in.redis)
	}
	authSvc := authservice.New(tenancySvc, tokens, revocations,
		authservice.WithLogger(log),
		authservice.WithAuditPublisher(auditor),
		authservice.WithMetrics(authmetrics.New(reg)),
	)
	authHandler := auth.NewHandler(authSvc, log)

	g, gctx := errgroup.WithContext(ctx)

	var counters ratelimit.Store
	if in.redis != nil {
		counters = window.NewRedis(in.redis)
	} else {
		mem := window.NewMemory()
		counters = mem
		g.Go(func() error {
			return ignoreCanceled(sweep(gctx, mem, cfg.RateLimit.Window))
		})
	}
	limiter := ratelimit.New(counters,
		ratelimit.WithLogger(log),
		ratelimit.WithMetrics(ratelimitmetrics.New(reg)),
		ratelimit.WithDisabled(cfg.RateLimit.Disabled),
	)

	router := httpapi.NewRouter(httpapi.Config{
		Logger:   log,
		Metrics:  metrics.New(reg),
		Gatherer: reg,
		Checks:   in.checks,
		Limiter:  limiter,
		LoginPolicy: ratelimit.Policy{
			Name: "login", Limit: cfg.RateLimit.Login, Window: cfg.RateLimit.Window, Key: ratelimit.ByClientIP,
		},
		APIPolicy: ratelimit.Policy{
			Name: "api", Limit: cfg.RateLimit.API, Window: cfg.RateLimit.Window, Key: ratelimit.ByUser,
		},
		Authenticate: auth.Middleware(tokens, authSvc, log),
		Public:       authHandler,
		Modules: []httpapi.Routes{
			authHandler,
			tenancy.NewHandler(tenancySvc, log),
			events.NewHandler(eventsSvc, log),
			analysis.NewHandler(analysisSvc, log),
			evidence.NewHandler(evidenceSvc, log),
			report.NewHandler(reportSvc, log),
			audit.NewHandler(audit.NewService(auditor), log),
		},
	})

	srv := httpserver.New(cfg.Server, router)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, cfg.Server, log)
	})
	g.Go(func() error {
		return ignoreCanceled(analysisSvc.StartEfficacyReminders(gctx, cfg.Workflow.ReminderInterval))
	})

	log.Info("rcaflow started",
		"version", version,
		"env", cfg.Server.Environment,
		"store", cfg.Store.Backend,
		"storage", cfg.Storage.Backend,
	)
	return g.Wait()
}

// sweep drops idle in-memory rate limit counters until ctx is done.
func sweep(ctx context.Context, mem *window.Memory, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			mem.Sweep(every)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
