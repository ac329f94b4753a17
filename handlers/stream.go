package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/xeipuuv/gojsonschema"

	"github.com/JayyDeveloper/lofimix/catalog"
	"github.com/JayyDeveloper/lofimix/errors"
	"github.com/JayyDeveloper/lofimix/log"
	"github.com/JayyDeveloper/lofimix/stream"
)

type StreamHandlersCollection struct {
	Supervisor *stream.Supervisor
	Catalog    *catalog.Catalog

	// Resolver supplies ingest destinations for requests that do not carry
	// one. Nil when no default destination is configured.
	Resolver stream.Resolver
}

// StartStream begins the continuous push loop for a catalog video. The body
// may carry an explicit ingest destination; otherwise the configured
// resolver supplies one.
func (d *StreamHandlersCollection) StartStream() httprouter.Handle {
	schema := inputSchemasCompiled["StartStream"]

	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		videoID := params.ByName("videoID")
		entry, ok := d.Catalog.Get(videoID)
		if !ok {
			errors.WriteHTTPNotFound(w, "Video not found", nil)
			return
		}

		var dest stream.Destination
		payload, err := io.ReadAll(req.Body)
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "Cannot read payload", err)
			return
		}
		if len(payload) > 0 {
			result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
			if err != nil {
				errors.WriteHTTPInternalServerError(w, "Cannot validate payload", err)
				return
			}
			if !result.Valid() {
				errors.WriteHTTPBadBodySchema("StartStream", w, result.Errors())
				return
			}
			if err := json.Unmarshal(payload, &dest); err != nil {
				errors.WriteHTTPBadRequest(w, "Invalid request payload", err)
				return
			}
		}

		if dest.IngestURL == "" && dest.IngestKey == "" {
			if d.Resolver == nil {
				errors.WriteHTTPNotImplemented(w, "No stream destination configured", nil)
				return
			}
			dest, err = d.Resolver.Resolve(videoID)
			if err != nil {
				errors.WriteHTTPInternalServerError(w, "Cannot resolve stream destination", err)
				return
			}
		}

		if _, err := d.Supervisor.Start(videoID, entry.Path, dest); err != nil {
			switch {
			case errors.IsStreamActive(err):
				errors.WriteHTTPConflict(w, "Stream already active", err)
			case errors.IsStreamDestination(err):
				errors.WriteHTTPBadRequest(w, "Invalid stream destination", err)
			default:
				errors.WriteHTTPInternalServerError(w, "Cannot start stream", err)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(d.Supervisor.Status(videoID)); err != nil {
			log.LogError(videoID, "failed to write response", err)
		}
	}
}

func (d *StreamHandlersCollection) StopStream() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		videoID := params.ByName("videoID")
		if err := d.Supervisor.Stop(videoID); err != nil {
			errors.WriteHTTPNotFound(w, "No active stream", err)
			return
		}
		io.WriteString(w, "OK")
	}
}

func (d *StreamHandlersCollection) StreamStatus() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		videoID := params.ByName("videoID")
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(d.Supervisor.Status(videoID)); err != nil {
			log.LogError(videoID, "failed to write response", err)
		}
	}
}
