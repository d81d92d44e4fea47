package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/not-nullexception/render-thumbnails/config"
	"github.com/not-nullexception/render-thumbnails/internal/db/postgres"
	"github.com/not-nullexception/render-thumbnails/internal/logger"
	"github.com/not-nullexception/render-thumbnails/internal/metrics"
	"github.com/not-nullexception/render-thumbnails/internal/minio/minio"
	imageprocessor "github.com/not-nullexception/render-thumbnails/internal/processor/image"
	"github.com/not-nullexception/render-thumbnails/internal/renderer"
	"github.com/not-nullexception/render-thumbnails/internal/tracing"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

const exitInterrupted = 130

type options struct {
	titles     []string
	configFile string
}

func parseFlags(args []string) (*options, *pflag.FlagSet, error) {
	opts := &options{}
	flags := pflag.NewFlagSet("render-thumbnails", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Render thumbnails of files.\n\nUsage: render-thumbnails [options]\n\n")
		flags.PrintDefaults()
	}
	flags.StringArrayVarP(&opts.titles, "title", "t", nil, "Render thumbnails for this file. Can be specified multiple times.")
	flags.Int("batch-size", 10, "Number of file names fetched per query when rendering all files")
	flags.Bool("force", false, "Render thumbnails again even if they are already stored")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&opts.configFile, "config", ".env", "Path to an env format config file")

	if err := flags.Parse(args); err != nil {
		return nil, nil, err
	}
	return opts, flags, nil
}

func main() {
	opts, flags, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	// Cancel the run on SIGINT/SIGTERM; the current file finishes first
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load(opts.configFile, flags)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	logger.Setup(&cfg.Log)

	shutdownTracing, err := tracing.Init(ctx, &cfg.Tracing)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracing")
	}

	// Create database repository
	repo, err := postgres.NewRepository(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create database repository")
	}

	// Create MinIO client
	minioClient, err := minio.NewClient(ctx, &cfg.MinIO)
	if err != nil {
		repo.Close()
		log.Fatal().Err(err).Msg("Failed to create MinIO client")
	}

	r := renderer.New(
		repo,
		imageprocessor.New(minioClient, cfg.Thumb.Quality),
		renderer.Options{
			Sizes:     cfg.Thumb.Sizes(),
			BatchSize: cfg.Batch.Size,
			MaxArea:   cfg.Thumb.MaxArea,
			Force:     cfg.Thumb.Force,
		},
		os.Stdout,
		os.Stderr,
	)

	_, runErr := r.Run(ctx, opts.titles)

	if err := metrics.Push(context.Background(), &cfg.Metrics); err != nil {
		log.Error().Err(err).Msg("Failed to push metrics")
	}
	shutdownTracing()
	minioClient.Close()
	repo.Close()

	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled):
		log.Warn().Msg("Interrupted")
		os.Exit(exitInterrupted)
	default:
		log.Error().Err(runErr).Msg("Thumbnail run failed")
		os.Exit(1)
	}
}
