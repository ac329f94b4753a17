package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/xeipuuv/gojsonschema"

	"github.com/JayyDeveloper/lofimix/errors"
	"github.com/JayyDeveloper/lofimix/log"
	"github.com/JayyDeveloper/lofimix/metrics"
	"github.com/JayyDeveloper/lofimix/pipeline"
)

type LofimixAPIHandlersCollection struct {
	Engine *pipeline.Coordinator
}

func HasContentType(r *http.Request, mimetype string) bool {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return mimetype == "application/octet-stream"
	}

	for _, v := range strings.Split(contentType, ",") {
		t, _, err := mime.ParseMediaType(v)
		if err != nil {
			break
		}
		if t == mimetype {
			return true
		}
	}

	return false
}

func (d *LofimixAPIHandlersCollection) Ok() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		io.WriteString(w, "OK")
	}
}

type SubmitRenderResponse struct {
	JobID string `json:"job_id"`
}

func (d *LofimixAPIHandlersCollection) SubmitRender() httprouter.Handle {
	schema := inputSchemasCompiled["SubmitRender"]

	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		startTime := time.Now()
		success, statusCode := false, http.StatusAccepted
		metrics.Metrics.RenderRequestCount.Inc()
		defer func() {
			metrics.Metrics.RenderRequestDurationSec.
				WithLabelValues(strconv.FormatBool(success), strconv.Itoa(statusCode)).
				Observe(time.Since(startTime).Seconds())
		}()

		var renderConfig pipeline.RenderConfig

		if !HasContentType(req, "application/json") {
			statusCode = http.StatusUnsupportedMediaType
			errors.WriteHTTPUnsupportedMediaType(w, "Requires application/json content type", nil)
			return
		} else if payload, err := io.ReadAll(req.Body); err != nil {
			statusCode = http.StatusInternalServerError
			errors.WriteHTTPInternalServerError(w, "Cannot read payload", err)
			return
		} else if result, err := schema.Validate(gojsonschema.NewBytesLoader(payload)); err != nil {
			statusCode = http.StatusInternalServerError
			errors.WriteHTTPInternalServerError(w, "Cannot validate payload", err)
			return
		} else if !result.Valid() {
			statusCode = http.StatusBadRequest
			errors.WriteHTTPBadBodySchema("SubmitRender", w, result.Errors())
			return
		} else if err := json.Unmarshal(payload, &renderConfig); err != nil {
			statusCode = http.StatusBadRequest
			errors.WriteHTTPBadRequest(w, "Invalid request payload", err)
			return
		}

		job, err := d.Engine.Admit(renderConfig)
		if err != nil {
			statusCode = http.StatusBadRequest
			errors.WriteHTTPBadRequest(w, "Invalid render configuration", err)
			return
		}

		log.Log(job.ID, "render job accepted", "basename", renderConfig.Basename, "tracks", len(renderConfig.SourceAudio))
		success = true
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		if err := json.NewEncoder(w).Encode(SubmitRenderResponse{JobID: job.ID}); err != nil {
			log.LogError(job.ID, "failed to write response", err)
		}
	}
}

func (d *LofimixAPIHandlersCollection) RenderStatus() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		id := params.ByName("id")
		status, err := d.Engine.Status(id, true)
		if err != nil {
			errors.WriteHTTPNotFound(w, "Job not found", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.LogError(id, "failed to write status response", err)
		}
	}
}

func (d *LofimixAPIHandlersCollection) ListRenders() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(d.Engine.List()); err != nil {
			log.LogNoJobID("failed to write job list response", "err", err)
		}
	}
}

func (d *LofimixAPIHandlersCollection) CancelRender() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		id := params.ByName("id")
		if err := d.Engine.Cancel(id); err != nil {
			errors.WriteHTTPNotFound(w, "Job not found", err)
			return
		}
		io.WriteString(w, "OK")
	}
}

func (d *LofimixAPIHandlersCollection) DownloadRender() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		id := params.ByName("id")
		job := d.Engine.Jobs.Get(id)
		if job == nil {
			errors.WriteHTTPNotFound(w, "Job not found", nil)
			return
		}
		outputPath := job.OutputPath()
		if outputPath == "" {
			errors.WriteHTTPNotFound(w, "Output not ready", fmt.Errorf("job %s has no finished output", id))
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(outputPath)))
		http.ServeFile(w, req, outputPath)
	}
}
