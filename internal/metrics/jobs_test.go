// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/ManuGH/loopcast/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromhttpExposure(t *testing.T) {
	metrics.FFmpegStartTotal.WithLabelValues("ok").Inc()
	metrics.FreezeTotal.Inc()
	metrics.JobsTotal.Set(3)

	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	for _, name := range []string{
		"loopcast_ffmpeg_start_total",
		"loopcast_freeze_total",
		"loopcast_jobs ",
	} {
		assert.Contains(t, string(body), name)
	}
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(metrics.RestartTotal.WithLabelValues("scheduled"))
	metrics.RestartTotal.WithLabelValues("scheduled").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RestartTotal.WithLabelValues("scheduled")))

	metrics.JobsRunning.Set(2)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.JobsRunning))

	before = testutil.ToFloat64(metrics.StoreSaveTotal.WithLabelValues("error"))
	metrics.StoreSaveTotal.WithLabelValues("error").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.StoreSaveTotal.WithLabelValues("error")))
}
