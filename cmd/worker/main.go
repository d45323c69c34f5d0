// Worker consumes render jobs from Kafka and runs the pipeline for each.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"clipforge/config"
	"clipforge/pipeline"
	"clipforge/queue"
)

func main() {
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", "", "path to config file")
		verbose    = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	config.InitLogging(*verbose)
	logger := config.NewLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager, err := pipeline.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to assemble pipeline")
	}

	handler := &queue.TypedMessageHandler[queue.Job]{
		Validate:   func(job *queue.Job) bool { return job.Valid() },
		Process:    jobProcessor(manager, logger),
		AlwaysMark: true,
		Logger:     logger,
	}

	consumer, err := queue.NewConsumer(cfg.Queue, handler, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create consumer")
	}
	defer consumer.Close()

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start consumer")
	}
	logger.Info().Msg("worker ready")

	<-ctx.Done()
	logger.Info().Msg("shutting down")
}

func jobProcessor(manager *pipeline.Manager, logger zerolog.Logger) func(ctx context.Context, job *queue.Job) error {
	return func(ctx context.Context, job *queue.Job) error {
		logger.Info().Str("job", job.ID).Str("mode", job.Mode).Msg("job started")
		err := manager.Run(ctx, pipeline.Options{
			URL:       job.URL,
			Topic:     job.Topic,
			Mode:      job.Mode,
			AudioPath: job.AudioPath,
			Upload:    job.Upload,
			Platforms: job.Platforms,
		})
		if err != nil {
			logger.Error().Err(err).Str("job", job.ID).Msg("job failed")
			return err
		}
		logger.Info().Str("job", job.ID).Msg("job finished")
		return nil
	}
}
