package httpx

import (
	"net/http"

	domainauth "github.com/target/greenhouse/internal/domain/auth"
)

// PageData is the view model shared by every page template.
type PageData struct {
	Title       string
	CurrentPage string
	State       domainauth.State
	DisplayName string
	CSRFToken   string

	// Form and page specific fields.
	Message     string
	Error       string
	Email       string
	RedirectURI string
	DevTools    bool
}

// newPageData seeds the common fields from the request and a state snapshot.
func (s *Server) newPageData(r *http.Request, page, title string, state domainauth.State) PageData {
	return PageData{
		Title:       title,
		CurrentPage: page,
		State:       state,
		DisplayName: s.displayName(state),
		CSRFToken:   GetCSRFToken(r),
		DevTools:    s.devTools(),
	}
}
