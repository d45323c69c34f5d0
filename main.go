package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"clipforge/api"
	"clipforge/config"
	"clipforge/pipeline"
	"clipforge/queue"
)

func main() {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", "", "path to config file")
		url        = flag.String("url", "", "source video URL")
		topic      = flag.String("topic", "", "focus topic for clip curation")
		mode       = flag.String("mode", "viral", "pipeline mode: viral or story")
		audioPath  = flag.String("audio", "", "narration audio file (story mode)")
		upload     = flag.Bool("upload", false, "upload finished clips")
		platforms  = flag.String("platforms", "", "comma-separated upload platforms")
		keepTemp   = flag.Bool("keep-temp", false, "keep intermediate workspace files")
		serve      = flag.Bool("serve", false, "run the HTTP API instead of a single job")
		useQueue   = flag.Bool("queue", false, "publish API jobs to Kafka instead of running in-process")
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

	if *serve {
		var publisher api.Publisher
		if *useQueue {
			p, err := queue.NewProducer(cfg.Queue, logger)
			if err != nil {
				logger.Fatal().Err(err).Msg("failed to connect producer")
			}
			defer p.Close()
			publisher = p
		}

		server := api.NewServer(manager, manager.Indexer(), publisher, logger)
		addr := fmt.Sprintf(":%d", cfg.API.Port)
		logger.Info().Str("addr", addr).Msg("starting API server")

		httpServer := &http.Server{Addr: addr, Handler: server.Router()}
		go func() {
			<-ctx.Done()
			_ = httpServer.Shutdown(context.Background())
		}()
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
		return
	}

	opts := pipeline.Options{
		URL:       *url,
		Topic:     *topic,
		Mode:      *mode,
		AudioPath: *audioPath,
		Upload:    *upload,
		KeepTemp:  *keepTemp,
	}
	if *platforms != "" {
		opts.Platforms = strings.Split(*platforms, ",")
	}

	if err := manager.Run(ctx, opts); err != nil {
		logger.Fatal().Err(err).Msg("pipeline failed")
	}
	logger.Info().Msg("done")
}
