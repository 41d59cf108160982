package health

import (
	"encoding/json"
	"net/http"
)

// Handler returns an http.Handler that reports the status produced by fn.
// The body is the JSON encoding of the Status. Unhealthy statuses are served
// with 503 so load balancers can act on the response code alone; degraded
// statuses still serve 200.
func Handler(fn func() Status) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status := fn()

		code := http.StatusOK
		if status.IsUnhealthy() {
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	})
}
