package httpx

import (
	"net/http"

	domainauth "github.com/target/greenhouse/internal/domain/auth"
)

// pageRoute is a static UI route and the requirement guarding it.
type pageRoute struct {
	Pattern string
	Title   string
	Message string
	Require domainauth.RouteRequirement
}

// pageRoutes lists the gated catalog pages. Their bodies are owned by the feature
// services; this server only decides who may see them.
//
//nolint:gochecknoglobals // static route table
var pageRoutes = []pageRoute{
	{Pattern: "GET /garden", Title: "My garden", Message: "Your plants and their care notes.", Require: domainauth.RequireUser},
	{Pattern: "GET /plants", Title: "Plants", Message: "Browse the plant catalog.", Require: domainauth.RequireUser},
	{Pattern: "GET /reminders", Title: "Reminders", Message: "Upcoming watering and feeding reminders.", Require: domainauth.RequireUser},
	{Pattern: "GET /feedback", Title: "Feedback", Message: "Tell us how Greenhouse is working for you.", Require: domainauth.RequireUser},
	{Pattern: "GET /admin", Title: "Admin", Message: "Catalog administration.", Require: domainauth.RequireAdmin},
	{Pattern: "GET /admin/plants", Title: "Manage plants", Message: "Add and edit catalog entries.", Require: domainauth.RequireAdmin},
	{Pattern: "GET /admin/feedback", Title: "User feedback", Message: "Feedback submitted by gardeners.", Require: domainauth.RequireAdmin},
}

func registerPageRoutes(mux *http.ServeMux, s *Server) {
	mux.Handle("GET /{$}", s.RequireRoute(domainauth.RequireNone)(http.HandlerFunc(s.Home)))
	for _, pr := range pageRoutes {
		mux.Handle(pr.Pattern, s.RequireRoute(pr.Require)(s.sectionHandler(pr)))
	}
}

// Home is the public landing page.
// GET /.
func (s *Server) Home(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, s.newPageData(r, PageHome, "", s.session.Snapshot()))
}

func (s *Server) sectionHandler(pr pageRoute) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state, ok := GetStateFromContext(r.Context())
		if !ok {
			state = s.session.Snapshot()
		}
		if !IsBrowserRequest(r) {
			WriteJSON(w, http.StatusOK, map[string]string{"page": pr.Title})
			return
		}
		data := s.newPageData(r, PageSection, pr.Title, state)
		data.Message = pr.Message
		s.render(w, r, http.StatusOK, data)
	})
}

// NotFound renders the 404 page for browsers and a JSON error otherwise.
func (s *Server) NotFound(w http.ResponseWriter, r *http.Request) {
	if !IsBrowserRequest(r) {
		WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": "resource not found"})
		return
	}
	s.render(w, r, http.StatusNotFound, s.newPageData(r, PageNotFound, "Not found", s.session.Snapshot()))
}
