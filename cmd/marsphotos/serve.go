package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roverlens/marsphotos/pkg/api"
	"github.com/roverlens/marsphotos/pkg/config"
	"github.com/roverlens/marsphotos/pkg/metrics"
	"github.com/roverlens/marsphotos/pkg/origin"
	"github.com/roverlens/marsphotos/pkg/retrieval"
	"github.com/roverlens/marsphotos/pkg/telemetry"
)

const sentryFlushTimeout = 2 * time.Second

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the photo search HTTP server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().Int("port", 8080, "HTTP listen port")
	cmd.Flags().Bool("degrade-on-origin-error", false, "answer with an empty result instead of 500 when NASA fails")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sentryEnabled, err := telemetry.Init(telemetry.Options{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
		Release:     "marsphotos@" + version,
	})
	if err != nil {
		logger.Warn("error reporting disabled", zap.Error(err))
	}
	if sentryEnabled {
		defer telemetry.Flush(sentryFlushTimeout)
	}
	reporter := telemetry.NewReporter(sentryEnabled)

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing cache store", zap.Error(err))
		}
	}()

	deadLetter, closeDeadLetter, err := openDeadLetter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDeadLetter()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.NewMetrics(reg)
	if err != nil {
		return err
	}

	client := origin.NewClient(cfg.OriginConfig(),
		origin.WithDeadLetter(deadLetter),
		origin.WithLogger(logger.Named("origin")))

	retriever := retrieval.New(store, client, retrieval.Options{
		DegradeOnOriginError: cfg.DegradeOnOriginError,
		Logger:               logger.Named("retrieval"),
		Metrics:              m,
		Reporter:             reporter,
	})

	srv := api.New(api.Config{Port: cfg.Port, FrontendURL: cfg.FrontendURL}, retriever,
		api.WithLogger(logger.Named("http")),
		api.WithReporter(reporter),
		api.WithGatherer(reg))

	logger.Info("server started",
		zap.Int("port", cfg.Port),
		zap.String("environment", cfg.Environment),
		zap.Bool("degrade_on_origin_error", cfg.DegradeOnOriginError),
		zap.Bool("dead_letter", cfg.DeadLetterEnabled()),
		zap.Bool("sentry", sentryEnabled))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	if err := srv.Shutdown(context.Background()); err != nil {
		return err
	}
	return <-errCh
}

// openDeadLetter returns the Pub/Sub publisher for malformed origin items, or
// a noop when no topic is configured.
func openDeadLetter(ctx context.Context, cfg *config.Config) (origin.DeadLetter, func(), error) {
	if !cfg.DeadLetterEnabled() {
		return origin.NoopDeadLetter{}, func() {}, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSubProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	topic := client.Topic(cfg.DeadLetterTopic)
	return origin.NewPubSubDeadLetter(topic), func() {
		topic.Stop()
		_ = client.Close()
	}, nil
}
