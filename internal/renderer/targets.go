package renderer

import (
	"context"
	"fmt"

	"github.com/not-nullexception/render-thumbnails/internal/db"
	"github.com/not-nullexception/render-thumbnails/internal/logger"
	"github.com/not-nullexception/render-thumbnails/internal/metrics"
)

// Targets is a lazy, single pass sequence of file names.
type Targets interface {
	// Next advances to the next name. It returns false when the sequence is
	// exhausted or an error occurred.
	Next(ctx context.Context) bool
	Name() string
	Err() error
}

// ResolveTargets returns the explicit titles when any are given, otherwise a
// paginated scan over the whole repository.
func ResolveTargets(repo db.Repository, titles []string, pageSize int) Targets {
	if len(titles) > 0 {
		return &titleList{titles: titles, pos: -1}
	}
	return NewPaginatedScan(repo, pageSize)
}

type titleList struct {
	titles []string
	pos    int
}

func (l *titleList) Next(context.Context) bool {
	if l.pos+1 >= len(l.titles) {
		l.pos = len(l.titles)
		return false
	}
	l.pos++
	return true
}

func (l *titleList) Name() string { return l.titles[l.pos] }

func (l *titleList) Err() error { return nil }

// PaginatedScan walks every file name in the repository, pageSize names per
// query. It stops at the first empty page. A page shorter than pageSize also
// ends the scan, so unlike a loop that runs until a query returns no rows it
// does not issue a trailing empty query; only a total that is a multiple of
// pageSize (including zero) costs one.
type PaginatedScan struct {
	repo     db.Repository
	pageSize int
	offset   int
	page     []string
	pos      int
	done     bool
	err      error
}

// NewPaginatedScan returns a scan starting at offset 0.
func NewPaginatedScan(repo db.Repository, pageSize int) *PaginatedScan {
	return &PaginatedScan{repo: repo, pageSize: pageSize}
}

// Next advances to the next name, fetching a page when the current one is
// used up. A failed fetch ends the scan and is kept for Err.
func (s *PaginatedScan) Next(ctx context.Context) bool {
	if s.pos < len(s.page) {
		s.pos++
		return true
	}
	if s.done {
		return false
	}
	page, err := s.repo.QueryPage(ctx, s.offset, s.pageSize)
	if err != nil {
		s.err = fmt.Errorf("error fetching names at offset %d: %w", s.offset, err)
		s.done = true
		return false
	}
	metrics.RecordPage()
	logger.FromContext(ctx).Debug().
		Int("offset", s.offset).
		Int("rows", len(page)).
		Msg("Fetched page")

	s.offset += s.pageSize
	if len(page) == 0 {
		s.done = true
		return false
	}
	if len(page) < s.pageSize {
		s.done = true
	}
	s.page, s.pos = page, 1
	return true
}

// Name returns the current name.
func (s *PaginatedScan) Name() string { return s.page[s.pos-1] }

// Err returns the page fetch error that ended the scan, if any.
func (s *PaginatedScan) Err() error { return s.err }
