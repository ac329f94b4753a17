package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JayyDeveloper/lofimix/catalog"
	"github.com/JayyDeveloper/lofimix/config"
	"github.com/JayyDeveloper/lofimix/pipeline"
	"github.com/JayyDeveloper/lofimix/stream"
)

type fixedProber struct{}

func (fixedProber) Duration(jobID, path string) (float64, error) { return 3600, nil }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	tool := filepath.Join(t.TempDir(), "fake-ffmpeg.sh")
	require.NoError(t, os.WriteFile(tool, []byte("#!/bin/sh\nexit 0\n"), 0o755))

	cat := catalog.New()
	engine := pipeline.NewCoordinator(pipeline.NewRunner(tool), fixedProber{}, cat, t.TempDir())
	supervisor := stream.NewSupervisor(tool)
	cli := config.Cli{APIToken: "secret"}
	return NewLofimixAPIRouter(cli, engine, cat, supervisor, nil)
}

func TestRouterHealthcheckIsPublic(t *testing.T) {
	router := newTestRouter(t)

	req, _ := http.NewRequest("GET", "/ok", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Result().StatusCode)
	require.Equal(t, "OK", rr.Body.String())
}

func TestRouterRequiresAuth(t *testing.T) {
	router := newTestRouter(t)

	protected := []struct {
		method string
		path   string
	}{
		{"POST", "/api/render"},
		{"GET", "/api/render"},
		{"GET", "/api/render/x/status"},
		{"POST", "/api/render/x/cancel"},
		{"GET", "/api/render/x/download"},
		{"GET", "/api/videos"},
		{"POST", "/api/videos"},
		{"DELETE", "/api/videos/x"},
		{"POST", "/api/stream/x/start"},
		{"POST", "/api/stream/x/stop"},
		{"GET", "/api/stream/x/status"},
	}
	for _, route := range protected {
		req, _ := http.NewRequest(route.method, route.path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusUnauthorized, rr.Result().StatusCode, "%s %s", route.method, route.path)
	}
}

func TestRouterAuthorizedListRenders(t *testing.T) {
	router := newTestRouter(t)

	req, _ := http.NewRequest("GET", "/api/render", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Result().StatusCode)
	require.Equal(t, "[]\n", rr.Body.String())
}
