package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/require"

	"github.com/JayyDeveloper/lofimix/catalog"
)

func registerTestVideo(t *testing.T, d *CatalogHandlersCollection, path string) catalog.Entry {
	t.Helper()
	payload, err := json.Marshal(RegisterVideoRequest{Path: path})
	require.NoError(t, err)

	req, _ := http.NewRequest("POST", "/api/videos", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	d.RegisterVideo()(rr, req, nil)

	require.Equal(t, http.StatusCreated, rr.Result().StatusCode, rr.Body.String())
	var entry catalog.Entry
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &entry))
	return entry
}

func TestRegisterListAndDeleteVideo(t *testing.T) {
	handlersCollection := &CatalogHandlersCollection{Catalog: catalog.New()}

	dir := t.TempDir()
	path := filepath.Join(dir, "upload.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video bytes"), 0o644))

	entry := registerTestVideo(t, handlersCollection, path)
	require.NotEmpty(t, entry.ID)
	require.Equal(t, "upload.mp4", entry.Name)
	require.Equal(t, catalog.ProvenanceUploaded, entry.Provenance)

	listReq, _ := http.NewRequest("GET", "/api/videos", nil)
	listRR := httptest.NewRecorder()
	handlersCollection.ListVideos()(listRR, listReq, nil)
	require.Equal(t, http.StatusOK, listRR.Result().StatusCode)
	var entries []catalog.Entry
	require.NoError(t, json.Unmarshal(listRR.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	require.Equal(t, entry.ID, entries[0].ID)

	deleteReq, _ := http.NewRequest("DELETE", "/api/videos/"+entry.ID, nil)
	deleteRR := httptest.NewRecorder()
	handlersCollection.DeleteVideo()(deleteRR, deleteReq, httprouter.Params{{Key: "id", Value: entry.ID}})
	require.Equal(t, http.StatusOK, deleteRR.Result().StatusCode)
	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}

func TestRegisterVideoResolvesRelativePathAgainstUploadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip.mp4"), []byte("video bytes"), 0o644))
	handlersCollection := &CatalogHandlersCollection{Catalog: catalog.New(), UploadDir: dir}

	entry := registerTestVideo(t, handlersCollection, "clip.mp4")
	require.Equal(t, "clip.mp4", entry.Name)
}

func TestRegisterVideoMissingFile(t *testing.T) {
	handlersCollection := &CatalogHandlersCollection{Catalog: catalog.New()}

	req, _ := http.NewRequest("POST", "/api/videos", bytes.NewBufferString(`{"path": "/nonexistent/clip.mp4"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handlersCollection.RegisterVideo()(rr, req, nil)

	require.Equal(t, http.StatusBadRequest, rr.Result().StatusCode)
}

func TestDeleteVideoRejectsRenderedOutput(t *testing.T) {
	cat := catalog.New()
	handlersCollection := &CatalogHandlersCollection{Catalog: cat}

	path := filepath.Join(t.TempDir(), "render.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video bytes"), 0o644))
	_, err := cat.Register("vid-1", path, "render.mp4", catalog.ProvenanceRendered)
	require.NoError(t, err)

	req, _ := http.NewRequest("DELETE", "/api/videos/vid-1", nil)
	rr := httptest.NewRecorder()
	handlersCollection.DeleteVideo()(rr, req, httprouter.Params{{Key: "id", Value: "vid-1"}})

	require.Equal(t, http.StatusConflict, rr.Result().StatusCode)
}

func TestDeleteVideoUnknownID(t *testing.T) {
	handlersCollection := &CatalogHandlersCollection{Catalog: catalog.New()}

	req, _ := http.NewRequest("DELETE", "/api/videos/nope", nil)
	rr := httptest.NewRecorder()
	handlersCollection.DeleteVideo()(rr, req, httprouter.Params{{Key: "id", Value: "nope"}})

	require.Equal(t, http.StatusNotFound, rr.Result().StatusCode)
}
