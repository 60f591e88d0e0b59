package webserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitesmith/sitesmith/internal/models"
	"github.com/sitesmith/sitesmith/internal/pipeline"
	"github.com/sitesmith/sitesmith/internal/stages"
	"github.com/sitesmith/sitesmith/internal/store"
	"github.com/sitesmith/sitesmith/internal/webapi"
)

type noopScheduler struct{}

func (noopScheduler) Schedule(string) {}

type noopRefiner struct{}

func (noopRefiner) RefineStructure(context.Context, *models.Task, string) (*stages.StructureDoc, error) {
	return &stages.StructureDoc{}, nil
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	st := store.New()
	gate := pipeline.NewGate(st, func(string) {})
	bc := pipeline.NewBroadcaster()
	handlers := webapi.NewHandlers(st, gate, bc, noopScheduler{}, noopRefiner{})
	srv := New(Config{Port: 0}, handlers)
	return srv.Handler()
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	err := json.Unmarshal(rec.Body.Bytes(), &body)
	require.NoError(t, err)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "sitesmith", body["service"])
}

func TestBareHealthEndpoint(t *testing.T) {
	handler := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSHeadersWhenConfigured(t *testing.T) {
	st := store.New()
	gate := pipeline.NewGate(st, func(string) {})
	bc := pipeline.NewBroadcaster()
	handlers := webapi.NewHandlers(st, gate, bc, noopScheduler{}, noopRefiner{})
	srv := New(Config{Port: 0, AllowedOrigins: []string{"http://localhost:3000"}}, handlers)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/build", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRouteReturns404(t *testing.T) {
	handler := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
