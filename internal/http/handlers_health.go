package httpx

import (
	"io"
	"net/http"
)

const healthResponse = `{"status":"ok"}`

// healthHandler returns a simple 200 OK status for liveness checks.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, healthResponse); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}

// Ready reports 503 until the initial session restore has settled.
// GET /readyz.
func (s *Server) Ready(w http.ResponseWriter, _ *http.Request) {
	select {
	case <-s.session.Ready():
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	default:
		w.Header().Set("Retry-After", "1")
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
	}
}
