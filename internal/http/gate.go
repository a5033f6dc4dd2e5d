package httpx

import (
	"net/http"

	domainauth "github.com/target/greenhouse/internal/domain/auth"
)

// RequireRoute gates next behind req using the current session snapshot. A loading
// session answers 503 with Retry-After so clients poll instead of being bounced to
// sign-in while a restore is still in flight.
func (s *Server) RequireRoute(req domainauth.RouteRequirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := s.session.Snapshot()
			decision := domainauth.Decide(state, req, r.URL.RequestURI())

			switch decision.Kind {
			case domainauth.DecisionAllow:
				next.ServeHTTP(w, r.WithContext(SetStateInContext(r.Context(), state)))
			case domainauth.DecisionLoading:
				s.writeLoading(w, r, state)
			default:
				s.writeGateRedirect(w, r, decision)
			}
		})
	}
}

func (s *Server) writeLoading(w http.ResponseWriter, r *http.Request, state domainauth.State) {
	w.Header().Set("Retry-After", "1")
	w.Header().Set("Cache-Control", "no-store")
	if !IsBrowserRequest(r) {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
		return
	}
	data := s.newPageData(r, PageLoading, "Loading", state)
	if err := s.renderer.Render(w, r, http.StatusServiceUnavailable, data); err != nil {
		http.Error(w, "Loading", http.StatusServiceUnavailable)
	}
}

// gateRedirectResponse is the API form of a redirect decision.
type gateRedirectResponse struct {
	Error      string `json:"error"`
	RedirectTo string `json:"redirect_to"`
	Reason     string `json:"reason"`
}

func (s *Server) writeGateRedirect(w http.ResponseWriter, r *http.Request, d domainauth.Decision) {
	s.logger.DebugContext(r.Context(), "route gate redirect",
		"path", r.URL.Path,
		"reason", d.Reason,
		"to", d.To,
	)
	if IsBrowserRequest(r) {
		redirectBrowser(w, r, d.To)
		return
	}

	status := http.StatusForbidden
	errCode := "forbidden"
	if d.Reason == domainauth.ReasonUnauthenticated {
		status = http.StatusUnauthorized
		errCode = "authentication_required"
	}
	WriteJSON(w, status, gateRedirectResponse{Error: errCode, RedirectTo: d.To, Reason: d.Reason})
}
