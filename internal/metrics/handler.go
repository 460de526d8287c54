package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the Prometheus metrics HTTP handler. The API server mounts
// this on its own router so one port serves both API and scrape traffic.
func Handler() http.Handler {
	return promhttp.Handler()
}
