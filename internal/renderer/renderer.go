package renderer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/not-nullexception/render-thumbnails/internal/db"
	"github.com/not-nullexception/render-thumbnails/internal/db/models"
	"github.com/not-nullexception/render-thumbnails/internal/logger"
	"github.com/not-nullexception/render-thumbnails/internal/metrics"
	imageprocessor "github.com/not-nullexception/render-thumbnails/internal/processor/image"
	"github.com/not-nullexception/render-thumbnails/internal/thumbs"
	"github.com/not-nullexception/render-thumbnails/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultMaxArea lifts the source size guard so large originals still get
// thumbnails.
const DefaultMaxArea = int64(10000 * 10000)

// Transformer renders a file within a bounding box right away.
type Transformer interface {
	TransformNow(ctx context.Context, file *models.File, params imageprocessor.Params) (*imageprocessor.Output, error)
}

// Options configures a Renderer.
type Options struct {
	// Sizes are rendered in order for every file.
	Sizes     []thumbs.Size
	BatchSize int
	MaxArea   int64
	Force     bool
}

// Summary counts what a run did.
type Summary struct {
	Files        int
	NotFound     int
	LookupFailed int
	Rendered     int
	Failed       int
}

// Renderer pre-renders thumbnails for files in the repository, one file and
// one size at a time.
type Renderer struct {
	repo        db.Repository
	transformer Transformer
	sizes       []thumbs.Size
	batchSize   int
	maxArea     int64
	force       bool
	out         io.Writer
	errOut      io.Writer
}

// New builds a Renderer. Report lines go to out, failures to errOut.
func New(repo db.Repository, transformer Transformer, opts Options, out, errOut io.Writer) *Renderer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.MaxArea == 0 {
		opts.MaxArea = DefaultMaxArea
	}
	return &Renderer{
		repo:        repo,
		transformer: transformer,
		sizes:       opts.Sizes,
		batchSize:   opts.BatchSize,
		maxArea:     opts.MaxArea,
		force:       opts.Force,
		out:         out,
		errOut:      errOut,
	}
}

// Run renders every size for the given titles, or for every file in the
// repository when titles is empty. Per file problems are reported and never
// stop the run; the returned error is for failures that make going on
// pointless, such as a page query failing or ctx being cancelled.
func (r *Renderer) Run(ctx context.Context, titles []string) (Summary, error) {
	var summary Summary

	ctx, span := tracing.StartSpan(ctx, "render-thumbnails",
		attribute.Int("titles", len(titles)),
		attribute.Int("sizes", len(r.sizes)),
	)
	defer span.End()

	runLogger := logger.GetLoggerWithContext(ctx, "renderer").With().Str("run_id", uuid.NewString()).Logger()
	ctx = logger.ToContext(ctx, runLogger)

	start := time.Now()
	runLogger.Info().
		Int("titles", len(titles)).
		Int("batch_size", r.batchSize).
		Int("sizes", len(r.sizes)).
		Msg("Starting thumbnail run")

	if err := r.repo.Ping(ctx); err != nil {
		tracing.RecordError(ctx, err)
		runLogger.Error().Err(err).Msg("Database health check failed")
		return summary, fmt.Errorf("database unavailable: %w", err)
	}

	targets := ResolveTargets(r.repo, titles, r.batchSize)
	for targets.Next(ctx) {
		r.processOne(ctx, targets.Name(), &summary)
		if err := ctx.Err(); err != nil {
			runLogger.Warn().Err(err).Int("files", summary.Files).Msg("Run interrupted")
			return summary, err
		}
	}
	if err := targets.Err(); err != nil {
		tracing.RecordError(ctx, err)
		runLogger.Error().Err(err).Msg("Listing files failed")
		return summary, err
	}

	runLogger.Info().
		Int("files", summary.Files).
		Int("not_found", summary.NotFound).
		Int("lookup_failed", summary.LookupFailed).
		Int("rendered", summary.Rendered).
		Int("failed", summary.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("Thumbnail run finished")
	return summary, nil
}

// ProcessOne renders every configured size of a single file.
func (r *Renderer) ProcessOne(ctx context.Context, title string) Summary {
	var summary Summary
	r.processOne(ctx, title, &summary)
	return summary
}

func (r *Renderer) processOne(ctx context.Context, title string, summary *Summary) {
	summary.Files++

	ctx, span := tracing.StartSpan(ctx, "process-file", attribute.String("title", title))
	defer span.End()

	file, err := r.repo.Resolve(ctx, models.NormalizeName(title))
	if errors.Is(err, db.ErrNotFound) {
		summary.NotFound++
		metrics.RecordFile(metrics.StatusNotFound)
		r.report("File not found: %s\n", title)
		return
	}
	if err != nil {
		summary.LookupFailed++
		metrics.RecordFile(metrics.StatusLookupFailed)
		tracing.RecordError(ctx, err)
		r.reportError("Unable to load %s: %v\n", title, err)
		return
	}

	for _, size := range r.sizes {
		if r.transformToSize(ctx, file, size) {
			summary.Rendered++
		} else {
			summary.Failed++
		}
	}
	metrics.RecordFile(metrics.StatusProcessed)
}

// transformToSize renders one size and reports the outcome. It returns true
// when a thumbnail is available afterwards.
func (r *Renderer) transformToSize(ctx context.Context, file *models.File, size thumbs.Size) bool {
	ctx, span := tracing.StartSpan(ctx, "transform",
		attribute.String("name", file.Name),
		attribute.Int("width", size.Width),
		attribute.Int("height", size.Height),
	)
	defer span.End()

	start := time.Now()
	params := imageprocessor.Params{
		Width:   size.Width,
		Height:  size.Height,
		MaxArea: r.maxArea,
		Force:   r.force,
	}

	out, err := r.transformer.TransformNow(ctx, file, params)
	if err != nil || out == nil {
		if err != nil {
			tracing.RecordError(ctx, err)
			logger.FromContext(ctx).Warn().Err(err).
				Str("name", file.Name).
				Str("size", size.String()).
				Msg("Transform failed")
		}
		metrics.RecordTransform(ctx, metrics.StatusFailed, start)
		r.reportError("Unable to transform %s\n", file.Name)
		return false
	}
	if out.IsError() {
		tracing.AddEvent(ctx, "transform-error", attribute.String("detail", out.ErrorDetail()))
		metrics.RecordTransform(ctx, metrics.StatusError, start)
		r.reportError("Unable to transform %s because:\n%s\n", file.Name, out.ErrorDetail())
		return false
	}

	status := metrics.StatusRendered
	if out.Cached {
		status = metrics.StatusCached
	}
	metrics.RecordTransform(ctx, status, start)
	r.report("%s rendered within %dx%d to %s\n", file.Name, size.Width, size.Height, out.Path)
	return true
}

func (r *Renderer) report(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *Renderer) reportError(format string, args ...any) {
	fmt.Fprintf(r.errOut, format, args...)
}
