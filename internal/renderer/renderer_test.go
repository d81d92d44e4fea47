package renderer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/not-nullexception/render-thumbnails/internal/db"
	"github.com/not-nullexception/render-thumbnails/internal/db/models"
	imageprocessor "github.com/not-nullexception/render-thumbnails/internal/processor/image"
	"github.com/not-nullexception/render-thumbnails/internal/thumbs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	names     []string
	lookupErr map[string]error
	pageErr   error
	pingErr   error
	pageCalls int
	resolved  []string
}

func newFakeRepo(names ...string) *fakeRepo {
	return &fakeRepo{names: names, lookupErr: map[string]error{}}
}

func (f *fakeRepo) Resolve(_ context.Context, name string) (*models.File, error) {
	f.resolved = append(f.resolved, name)
	if err, ok := f.lookupErr[name]; ok {
		return nil, err
	}
	for _, n := range f.names {
		if n == name {
			return &models.File{Name: n, Width: 1000, Height: 800}, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeRepo) QueryPage(_ context.Context, offset, limit int) ([]string, error) {
	f.pageCalls++
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	if offset >= len(f.names) {
		return []string{}, nil
	}
	end := min(offset+limit, len(f.names))
	return f.names[offset:end], nil
}

func (f *fakeRepo) Ping(context.Context) error { return f.pingErr }
func (f *fakeRepo) Close() error               { return nil }

type call struct {
	name   string
	params imageprocessor.Params
}

type fakeTransformer struct {
	calls  []call
	result func(name string, p imageprocessor.Params) (*imageprocessor.Output, error)
}

func (f *fakeTransformer) TransformNow(_ context.Context, file *models.File, p imageprocessor.Params) (*imageprocessor.Output, error) {
	f.calls = append(f.calls, call{name: file.Name, params: p})
	if f.result != nil {
		return f.result(file.Name, p)
	}
	return &imageprocessor.Output{Path: fmt.Sprintf("thumb/%s/%dpx-%s", file.Name, p.Width, file.Name)}, nil
}

func (f *fakeTransformer) sizes() []thumbs.Size {
	var s []thumbs.Size
	for _, c := range f.calls {
		s = append(s, thumbs.Size{Width: c.params.Width, Height: c.params.Height})
	}
	return s
}

var exampleSizes = []thumbs.Size{{Width: 120, Height: 120}, {Width: 250, Height: 250}, {Width: 200, Height: 150}}

func newRenderer(repo db.Repository, tr Transformer, batchSize int) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	r := New(repo, tr, Options{Sizes: exampleSizes, BatchSize: batchSize}, &out, &errOut)
	return r, &out, &errOut
}

func TestProcessOneRendersSizesInOrder(t *testing.T) {
	tr := &fakeTransformer{}
	r, out, errOut := newRenderer(newFakeRepo("A.png"), tr, 10)

	summary := r.ProcessOne(context.Background(), "A.png")

	assert.Equal(t, exampleSizes, tr.sizes())
	assert.Equal(t, 3, summary.Rendered)
	assert.Empty(t, errOut.String())
	assert.Equal(t,
		"A.png rendered within 120x120 to thumb/A.png/120px-A.png\n"+
			"A.png rendered within 250x250 to thumb/A.png/250px-A.png\n"+
			"A.png rendered within 200x150 to thumb/A.png/200px-A.png\n",
		out.String())
}

func TestProcessOnePassesRelaxedAreaLimit(t *testing.T) {
	tr := &fakeTransformer{}
	r, _, _ := newRenderer(newFakeRepo("A.png"), tr, 10)

	r.ProcessOne(context.Background(), "A.png")

	require.NotEmpty(t, tr.calls)
	for _, c := range tr.calls {
		assert.Equal(t, int64(10000*10000), c.params.MaxArea)
		assert.False(t, c.params.Force)
	}
}

func TestProcessOneNotFound(t *testing.T) {
	tr := &fakeTransformer{}
	r, out, errOut := newRenderer(newFakeRepo(), tr, 10)

	summary := r.ProcessOne(context.Background(), "missing file.png")

	assert.Equal(t, "File not found: missing file.png\n", out.String())
	assert.Empty(t, errOut.String())
	assert.Empty(t, tr.calls)
	assert.Equal(t, 1, summary.NotFound)
}

func TestProcessOneNormalizesTitle(t *testing.T) {
	repo := newFakeRepo("Foo_bar.png")
	tr := &fakeTransformer{}
	r, _, _ := newRenderer(repo, tr, 10)

	r.ProcessOne(context.Background(), "File:foo bar.png")

	assert.Equal(t, []string{"Foo_bar.png"}, repo.resolved)
	assert.Len(t, tr.calls, len(exampleSizes))
	assert.Equal(t, "Foo_bar.png", tr.calls[0].name)
}

func TestProcessOneLookupError(t *testing.T) {
	repo := newFakeRepo("A.png")
	repo.lookupErr["A.png"] = errors.New("connection refused")
	tr := &fakeTransformer{}
	r, out, errOut := newRenderer(repo, tr, 10)

	summary := r.ProcessOne(context.Background(), "A.png")

	assert.Empty(t, out.String())
	assert.Equal(t, "Unable to load A.png: connection refused\n", errOut.String())
	assert.Empty(t, tr.calls)
	assert.Equal(t, 1, summary.LookupFailed)
}

func TestTransformFailureAndErrorResultAreDistinct(t *testing.T) {
	tr := &fakeTransformer{result: func(_ string, p imageprocessor.Params) (*imageprocessor.Output, error) {
		if p.Width == 120 {
			return nil, errors.New("storage unavailable")
		}
		if p.Width == 250 {
			return imageprocessor.NewErrorOutput("Error creating thumbnail: bad header"), nil
		}
		return &imageprocessor.Output{Path: "thumb/x"}, nil
	}}
	r, out, errOut := newRenderer(newFakeRepo("A.png"), tr, 10)

	summary := r.ProcessOne(context.Background(), "A.png")

	assert.Equal(t,
		"Unable to transform A.png\n"+
			"Unable to transform A.png because:\nError creating thumbnail: bad header\n",
		errOut.String())
	assert.Equal(t, "A.png rendered within 200x150 to thumb/x\n", out.String())
	assert.Equal(t, 1, summary.Rendered)
	assert.Equal(t, 2, summary.Failed)
}

func TestRunContinuesAfterFailingFile(t *testing.T) {
	tests := []struct {
		name    string
		result  func() (*imageprocessor.Output, error)
		errLine string
	}{
		{
			name:    "transform failure",
			result:  func() (*imageprocessor.Output, error) { return nil, errors.New("boom") },
			errLine: "Unable to transform Bad.png\n",
		},
		{
			name: "error result",
			result: func() (*imageprocessor.Output, error) {
				return imageprocessor.NewErrorOutput("Error creating thumbnail: unable to decode image"), nil
			},
			errLine: "Unable to transform Bad.png because:\nError creating thumbnail: unable to decode image\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTransformer{result: func(name string, _ imageprocessor.Params) (*imageprocessor.Output, error) {
				if name == "Bad.png" {
					return tt.result()
				}
				return &imageprocessor.Output{Path: "thumb/" + name}, nil
			}}
			r, out, errOut := newRenderer(newFakeRepo("Bad.png", "Good.png"), tr, 10)

			summary, err := r.Run(context.Background(), nil)
			require.NoError(t, err)

			assert.Equal(t, strings.Repeat(tt.errLine, len(exampleSizes)), errOut.String())
			assert.Equal(t, 3, strings.Count(out.String(), "Good.png rendered within"))
			assert.NotContains(t, out.String(), "Bad.png")
			assert.Equal(t, Summary{Files: 2, Rendered: 3, Failed: 3}, summary)
		})
	}
}

func TestRunExplicitTitlesSkipsPagination(t *testing.T) {
	repo := newFakeRepo("A.png", "B.png", "C.png")
	tr := &fakeTransformer{}
	r, out, _ := newRenderer(repo, tr, 2)

	summary, err := r.Run(context.Background(), []string{"C.png", "Nope.png", "A.png"})
	require.NoError(t, err)

	assert.Zero(t, repo.pageCalls)
	assert.Equal(t, []string{"C.png", "Nope.png", "A.png"}, repo.resolved)
	assert.Contains(t, out.String(), "File not found: Nope.png\n")
	assert.Equal(t, 3, summary.Files)
	assert.Equal(t, 1, summary.NotFound)
	assert.Equal(t, 6, summary.Rendered)
}

func TestRunScansWholeRepository(t *testing.T) {
	names := make([]string, 25)
	for i := range names {
		names[i] = fmt.Sprintf("F%02d.png", i)
	}
	repo := newFakeRepo(names...)
	tr := &fakeTransformer{}
	r, _, _ := newRenderer(repo, tr, 10)

	summary, err := r.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, names, repo.resolved)
	assert.Equal(t, 25, summary.Files)
	assert.Len(t, tr.calls, 25*len(exampleSizes))
	assert.Equal(t, 3, repo.pageCalls)
}

func TestRunEmptyRepository(t *testing.T) {
	repo := newFakeRepo()
	tr := &fakeTransformer{}
	r, out, errOut := newRenderer(repo, tr, 10)

	summary, err := r.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.pageCalls)
	assert.Zero(t, summary.Files)
	assert.Empty(t, out.String())
	assert.Empty(t, errOut.String())
}

func TestRunPageErrorIsFatal(t *testing.T) {
	repo := newFakeRepo("A.png")
	repo.pageErr = errors.New("relation \"image\" does not exist")
	r, _, _ := newRenderer(repo, &fakeTransformer{}, 10)

	_, err := r.Run(context.Background(), nil)
	assert.ErrorIs(t, err, repo.pageErr)
}

func TestRunFailsWhenDatabaseIsDown(t *testing.T) {
	repo := newFakeRepo("A.png")
	repo.pingErr = errors.New("dial tcp: connection refused")
	tr := &fakeTransformer{}
	r, out, _ := newRenderer(repo, tr, 10)

	_, err := r.Run(context.Background(), []string{"A.png"})
	assert.ErrorIs(t, err, repo.pingErr)
	assert.Empty(t, repo.resolved)
	assert.Empty(t, tr.calls)
	assert.Empty(t, out.String())
}

func TestRunStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := &fakeTransformer{result: func(string, imageprocessor.Params) (*imageprocessor.Output, error) {
		cancel()
		return &imageprocessor.Output{Path: "thumb/x"}, nil
	}}
	r, _, _ := newRenderer(newFakeRepo("A.png", "B.png"), tr, 10)

	summary, err := r.Run(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, summary.Files)
}

func TestNewDefaults(t *testing.T) {
	r := New(newFakeRepo(), &fakeTransformer{}, Options{}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.Equal(t, 10, r.batchSize)
	assert.Equal(t, DefaultMaxArea, r.maxArea)
}
