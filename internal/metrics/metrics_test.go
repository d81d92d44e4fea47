package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/not-nullexception/render-thumbnails/config"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTransform(t *testing.T) {
	before := testutil.ToFloat64(TransformsTotal.WithLabelValues(StatusRendered))
	RecordTransform(context.Background(), StatusRendered, time.Now())
	assert.Equal(t, before+1, testutil.ToFloat64(TransformsTotal.WithLabelValues(StatusRendered)))
}

func TestRecordFile(t *testing.T) {
	before := testutil.ToFloat64(FilesTotal.WithLabelValues(StatusNotFound))
	RecordFile(StatusNotFound)
	assert.Equal(t, before+1, testutil.ToFloat64(FilesTotal.WithLabelValues(StatusNotFound)))
}

func TestPushDisabled(t *testing.T) {
	assert.NoError(t, Push(context.Background(), &config.MetricsConfig{}))
}

func TestPushToGateway(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := Push(context.Background(), &config.MetricsConfig{Pushgateway: srv.URL, Job: "render_thumbnails"})
	require.NoError(t, err)
	assert.Equal(t, "/metrics/job/render_thumbnails", path)
}
