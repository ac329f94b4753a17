package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JayyDeveloper/lofimix/config"
	"github.com/JayyDeveloper/lofimix/log"
)

func ListenAndServe(addr string) error {
	http.Handle("/metrics", promhttp.Handler())

	log.LogNoJobID(
		"Starting Prometheus metrics",
		"version", config.Version,
		"host", addr,
	)
	return http.ListenAndServe(addr, nil)
}
