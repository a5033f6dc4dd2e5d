package httpx

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/greenhouse/internal/domain/auth"
)

func TestRequireRoute_Browser(t *testing.T) {
	unverified := verifiedState(domainauth.RoleUser)
	unverified.User.EmailVerifiedAt = nil

	tests := []struct {
		name     string
		state    domainauth.State
		path     string
		status   int
		location string
	}{
		{name: "signed out to sign-in", state: signedOutState(), path: "/garden?tab=1", status: http.StatusSeeOther,
			location: "/auth/sign-in?redirect_uri=%2Fgarden%3Ftab%3D1"},
		{name: "unverified to holding page", state: unverified, path: "/plants", status: http.StatusSeeOther,
			location: "/auth/verify-email?email=fern%40example.com"},
		{name: "admin kept out of user pages", state: verifiedState(domainauth.RoleAdmin), path: "/garden",
			status: http.StatusSeeOther, location: "/admin"},
		{name: "user kept out of admin pages", state: verifiedState(domainauth.RoleUser), path: "/admin/plants",
			status: http.StatusSeeOther, location: "/"},
		{name: "roleless user", state: verifiedState(domainauth.RoleNone), path: "/reminders",
			status: http.StatusSeeOther, location: "/"},
		{name: "user allowed", state: verifiedState(domainauth.RoleUser), path: "/feedback", status: http.StatusOK},
		{name: "admin allowed", state: verifiedState(domainauth.RoleAdmin), path: "/admin/feedback", status: http.StatusOK},
		{name: "public home while signed out", state: signedOutState(), path: "/", status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.state)
			rec := env.get(tt.path, "Accept", "text/html")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.location, rec.Header().Get("Location"))
		})
	}
}

func TestRequireRoute_LoadingRendersPlaceholder(t *testing.T) {
	env := newTestEnv(t, domainauth.InitialState())

	rec := env.get("/garden", "Accept", "text/html")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "Loading your session")
	assert.Empty(t, rec.Header().Get("Location"))

	api := env.get("/admin", "Accept", "application/json")
	assert.Equal(t, http.StatusServiceUnavailable, api.Code)
	assert.JSONEq(t, `{"status":"loading"}`, api.Body.String())
}

func TestRequireRoute_PublicRouteIgnoresLoading(t *testing.T) {
	env := newTestEnv(t, domainauth.InitialState())
	rec := env.get("/", "Accept", "text/html")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoute_APIRedirects(t *testing.T) {
	env := newTestEnv(t, signedOutState())
	rec := env.get("/garden", "Accept", "application/json")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var body gateRedirectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domainauth.ReasonUnauthenticated, body.Reason)
	assert.Equal(t, "/auth/sign-in?redirect_uri=%2Fgarden", body.RedirectTo)

	env.session.Set(verifiedState(domainauth.RoleUser))
	rec = env.get("/admin", "Accept", "application/json")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domainauth.ReasonNotAdmin, body.Reason)
	assert.Equal(t, "/", body.RedirectTo)
}

func TestRequireRoute_HTMXRedirect(t *testing.T) {
	env := newTestEnv(t, signedOutState())
	rec := env.get("/plants", "Hx-Request", "true")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/auth/sign-in?redirect_uri=%2Fplants", rec.Header().Get("Hx-Redirect"))
}

func TestRequireRoute_AllowedPageCarriesState(t *testing.T) {
	env := newTestEnv(t, verifiedState(domainauth.RoleUser))
	rec := env.get("/garden", "Accept", "text/html")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "My garden")
	assert.Contains(t, body, "Fern Gully")
	assert.NotContains(t, body, `href="/admin"`)
}

func TestRender_HTMXGetsFragment(t *testing.T) {
	env := newTestEnv(t, verifiedState(domainauth.RoleUser))

	rec := env.get("/plants", "Hx-Request", "true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Browse the plant catalog.")
	assert.NotContains(t, rec.Body.String(), "<html")

	full := env.get("/plants", "Accept", "text/html")
	assert.Contains(t, full.Body.String(), "<html")
}
