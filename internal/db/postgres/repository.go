package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/not-nullexception/render-thumbnails/config"
	"github.com/not-nullexception/render-thumbnails/internal/db"
	"github.com/not-nullexception/render-thumbnails/internal/db/models"
	"github.com/not-nullexception/render-thumbnails/internal/logger"
)

// Querier is the subset of pgxpool.Pool used by the repository
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Repository reads file records from the wiki image table
type Repository struct {
	q    Querier
	pool *pgxpool.Pool
}

// NewRepository connects a pgx pool and checks the connection
func NewRepository(ctx context.Context, cfg *config.DatabaseConfig) (db.Repository, error) {
	initLogger := logger.GetLogger("postgres-repository")

	// Create a connection pool configuration
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Set pool configuration
	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)

	// Create connection pool
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	initLogger.Info().Str("host", cfg.Host).Str("dbname", cfg.DBName).Msg("Connected to Postgres database")
	return &Repository{q: pool, pool: pool}, nil
}

// NewWithQuerier builds a repository on an existing connection or pool
func NewWithQuerier(q Querier) *Repository {
	return &Repository{q: q}
}

// Resolve retrieves a file record by its name
func (r *Repository) Resolve(ctx context.Context, name string) (*models.File, error) {
	reqLogger := logger.FromContext(ctx)

	query := `
		SELECT img_name, img_size, img_width, img_height, img_media_type,
			img_major_mime, img_minor_mime
		FROM image
		WHERE img_name = $1
	`

	reqLogger.Debug().Str("name", name).Msg("Executing Resolve query")

	var f models.File
	err := r.q.QueryRow(ctx, query, name).Scan(
		&f.Name, &f.Size, &f.Width, &f.Height, &f.MediaType,
		&f.MajorMIME, &f.MinorMIME,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			reqLogger.Debug().Str("name", name).Msg("File not found")
			return nil, db.ErrNotFound
		}

		reqLogger.Error().Err(err).Str("name", name).Msg("Error querying file")
		return nil, fmt.Errorf("error querying file %q: %w", name, err)
	}

	return &f, nil
}

// QueryPage returns a page of file names in name order
func (r *Repository) QueryPage(ctx context.Context, offset, limit int) ([]string, error) {
	reqLogger := logger.FromContext(ctx)

	query := `
		SELECT img_name
		FROM image
		ORDER BY img_name
		LIMIT $1 OFFSET $2
	`

	reqLogger.Debug().Int("limit", limit).Int("offset", offset).Msg("Executing QueryPage query")

	rows, err := r.q.Query(ctx, query, limit, offset)
	if err != nil {
		reqLogger.Error().Err(err).Msg("Error querying file names")
		return nil, fmt.Errorf("error querying file names: %w", err)
	}

	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		reqLogger.Error().Err(err).Msg("Error scanning file names")
		return nil, fmt.Errorf("error scanning file names: %w", err)
	}

	reqLogger.Debug().Int("rows", len(names)).Msg("Page retrieved")
	return names, nil
}

// Ping checks that the database is reachable
func (r *Repository) Ping(ctx context.Context) error {
	reqLogger := logger.FromContext(ctx)
	reqLogger.Debug().Msg("Pinging database")

	err := r.q.Ping(ctx)
	if err != nil {
		reqLogger.Error().Err(err).Msg("Error pinging database")
		return fmt.Errorf("error pinging database: %w", err)
	}

	return nil
}

// Close releases the connection pool
func (r *Repository) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}
