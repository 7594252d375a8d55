package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"insurance-pipeline/internal/apperr"
	"insurance-pipeline/internal/cfg"
	"insurance-pipeline/internal/logging"
	"insurance-pipeline/internal/metrics"
	"insurance-pipeline/internal/mongodb"
	"insurance-pipeline/internal/pipeline"
	"insurance-pipeline/internal/storage"
	"insurance-pipeline/internal/trainer"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	exitOK       = 0
	exitFailed   = 1
	exitRejected = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	// Parse command line arguments
	var (
		stage    = flag.String("stage", "all", "Stages to run: all, or a comma-separated list of ingest, validate, transform, train, predict")
		logLevel = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
		envFile  = flag.String("env-file", ".env", "Optional dotenv file loaded before the configuration")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", *envFile, err)
		return exitFailed
	}

	// Load configuration
	config, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return exitFailed
	}
	if *logLevel != "" {
		config.LogLevel = *logLevel
	}

	// Setup logging
	logFile, err := logging.Setup(config.LogLevel, config.LogDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		return exitFailed
	}
	defer logFile.Close()

	log.Info().
		Str("artifact_dir", config.ArtifactDir).
		Str("collection", config.CollectionName).
		Str("model_path", config.TrainedModelFilePath).
		Float64("expected_accuracy", config.ExpectedAccuracy).
		Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(config.DataPath, 0o755); err != nil {
		log.Error().Err(err).Msg("Failed to create data directory")
		return exitFailed
	}
	store, err := storage.New(config.DataPath)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open run ledger")
		return exitFailed
	}
	defer store.Close()

	m := metrics.New()
	opts := []pipeline.Option{
		pipeline.WithStore(store),
		pipeline.WithMetrics(metrics.NewWrapper(m)),
		pipeline.WithPusher(m),
	}

	stages := parseStages(*stage)
	if needsIngest(stages) {
		mongo, err := mongodb.NewManager(config.MongoURL, config.DatabaseName)
		if err != nil {
			log.Error().Err(err).Msg("MongoDB is required for ingestion")
			return exitFailed
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mongo.Close(closeCtx); err != nil {
				log.Warn().Err(err).Msg("Failed to close MongoDB client")
			}
		}()
		opts = append(opts, pipeline.WithSource(mongo))
	}

	res, err := pipeline.New(config, opts...).Run(ctx, stages)
	switch {
	case err == nil:
		ev := log.Info().Str("run_id", res.RunID).Str("outcome", res.Outcome)
		if res.Artifact != nil {
			ev = ev.
				Str("model", res.Artifact.TrainedModelFilePath).
				Float64("accuracy", res.Artifact.MetricArtifact.Accuracy).
				Float64("f1", res.Artifact.MetricArtifact.F1)
		}
		if res.Prediction != nil {
			ev = ev.Str("predictions", res.Prediction.PredictionFilePath).Int("positive", res.Prediction.Positive)
		}
		ev.Msg("Pipeline completed successfully")
		return exitOK
	case res.Outcome == trainer.OutcomeRejected:
		log.Warn().
			Str("run_id", res.RunID).
			Float64("train_accuracy", res.TrainAccuracy).
			Float64("expected_accuracy", config.ExpectedAccuracy).
			Msg("Model rejected; previous model left in place")
		return exitRejected
	default:
		log.Error().
			Err(err).
			Str("run_id", res.RunID).
			Str("kind", apperr.KindOf(err).String()).
			Msg("Pipeline failed")
		return exitFailed
	}
}

// parseStages parses comma-separated stage names
func parseStages(stages string) []string {
	var result []string
	for _, s := range strings.Split(stages, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			result = append(result, s)
		}
	}
	return result
}

func needsIngest(stages []string) bool {
	if len(stages) == 0 {
		return true
	}
	for _, s := range stages {
		if s == "all" || s == pipeline.StageIngest {
			return true
		}
	}
	return false
}
