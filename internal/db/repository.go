package db

import (
	"context"
	"errors"

	"github.com/not-nullexception/render-thumbnails/internal/db/models"
)

// ErrNotFound is returned when a file name has no record
var ErrNotFound = errors.New("file not found")

// Repository defines the read operations the renderer needs
type Repository interface {
	// Resolve looks up a file by its normalized name
	Resolve(ctx context.Context, name string) (*models.File, error)
	// QueryPage returns up to limit file names starting at offset. An empty
	// page marks the end of the data.
	QueryPage(ctx context.Context, offset, limit int) ([]string, error)

	// Ping checks that the database is reachable
	Ping(ctx context.Context) error

	// Close releases the connections
	Close() error
}
