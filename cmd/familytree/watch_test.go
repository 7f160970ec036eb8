package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"familytree/infrastructure/observability"
)

func TestMetricsRouter(t *testing.T) {
	collector := observability.NewCollector("familytree_cli")
	collector.RecordSave("enhanced", true, 512, time.Millisecond)
	router := metricsRouter(collector.Registry())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "familytree_cli_snapshot_saves_total")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
