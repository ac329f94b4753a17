package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/julienschmidt/httprouter"

	"github.com/JayyDeveloper/lofimix/errors"
	"github.com/JayyDeveloper/lofimix/metrics"
)

type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}

	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
	rw.wroteHeader = true
}

func LogRequest(logger kitlog.Logger) func(httprouter.Handle) httprouter.Handle {
	return func(next httprouter.Handle) httprouter.Handle {
		fn := func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			metrics.Metrics.HTTPRequestsInFlight.Add(1)
			defer metrics.Metrics.HTTPRequestsInFlight.Add(-1)

			defer func() {
				if err := recover(); err != nil {
					errors.WriteHTTPInternalServerError(wrapped, "Internal Server Error", nil)
					_ = logger.Log("err", err, "trace", debug.Stack())
				}
			}()

			next(wrapped, r, ps)
			_ = logger.Log(
				"remote", r.RemoteAddr,
				"proto", r.Proto,
				"method", r.Method,
				"uri", r.URL.RequestURI(),
				"duration", time.Since(start),
				"status", wrapped.status,
			)
		}

		return fn
	}
}
