package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/xeipuuv/gojsonschema"

	"github.com/JayyDeveloper/lofimix/catalog"
	"github.com/JayyDeveloper/lofimix/errors"
	"github.com/JayyDeveloper/lofimix/log"
)

type CatalogHandlersCollection struct {
	Catalog *catalog.Catalog

	// UploadDir anchors relative registration paths. Absolute paths are
	// taken as-is.
	UploadDir string
}

type RegisterVideoRequest struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

func (d *CatalogHandlersCollection) ListVideos() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(d.Catalog.List()); err != nil {
			log.LogNoJobID("failed to write video list response", "err", err)
		}
	}
}

// RegisterVideo adds an already-uploaded file to the catalog. The transport
// that put the file on disk is not this server's concern; registration is.
func (d *CatalogHandlersCollection) RegisterVideo() httprouter.Handle {
	schema := inputSchemasCompiled["RegisterVideo"]

	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		var registerRequest RegisterVideoRequest

		if !HasContentType(req, "application/json") {
			errors.WriteHTTPUnsupportedMediaType(w, "Requires application/json content type", nil)
			return
		} else if payload, err := io.ReadAll(req.Body); err != nil {
			errors.WriteHTTPInternalServerError(w, "Cannot read payload", err)
			return
		} else if result, err := schema.Validate(gojsonschema.NewBytesLoader(payload)); err != nil {
			errors.WriteHTTPInternalServerError(w, "Cannot validate payload", err)
			return
		} else if !result.Valid() {
			errors.WriteHTTPBadBodySchema("RegisterVideo", w, result.Errors())
			return
		} else if err := json.Unmarshal(payload, &registerRequest); err != nil {
			errors.WriteHTTPBadRequest(w, "Invalid request payload", err)
			return
		}

		path := registerRequest.Path
		if !filepath.IsAbs(path) && d.UploadDir != "" {
			path = filepath.Join(d.UploadDir, path)
		}
		name := registerRequest.Name
		if name == "" {
			name = filepath.Base(path)
		}
		entry, err := d.Catalog.Register(uuid.New().String(), path, name, catalog.ProvenanceUploaded)
		if err != nil {
			errors.WriteHTTPBadRequest(w, "Cannot register video", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(entry); err != nil {
			log.LogError(entry.ID, "failed to write response", err)
		}
	}
}

func (d *CatalogHandlersCollection) DeleteVideo() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		id := params.ByName("id")
		if err := d.Catalog.Remove(id); err != nil {
			if errors.IsNotFound(err) {
				errors.WriteHTTPNotFound(w, "Video not found", err)
				return
			}
			if errors.IsNotRemovable(err) {
				errors.WriteHTTPConflict(w, "Video cannot be removed", err)
				return
			}
			errors.WriteHTTPInternalServerError(w, "Cannot remove video", err)
			return
		}
		io.WriteString(w, "OK")
	}
}
