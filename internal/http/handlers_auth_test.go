package httpx

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/greenhouse/internal/domain/auth"
)

func decodeAction(t *testing.T, body []byte) actionResponse {
	t.Helper()
	var out actionResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestSignIn_FormRedirectsToReturnPath(t *testing.T) {
	env := newTestEnv(t, signedOutState())

	rec := env.postForm("/auth/sign-in", url.Values{
		"email":        {"Fern@Example.com"},
		"password":     {"hunter22"},
		"redirect_uri": {"/reminders"},
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/reminders", rec.Header().Get("Location"))
	assert.True(t, env.session.Snapshot().Authenticated())
}

func TestSignIn_ForeignReturnPathIgnored(t *testing.T) {
	env := newTestEnv(t, signedOutState())

	rec := env.postForm("/auth/sign-in", url.Values{
		"email":        {"fern@example.com"},
		"password":     {"hunter22"},
		"redirect_uri": {"https://evil.example.com/"},
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/garden", rec.Header().Get("Location"))
}

func TestSignIn_AdminLandsOnAdmin(t *testing.T) {
	env := newTestEnv(t, signedOutState())
	env.auth.role = domainauth.RoleAdmin

	rec := env.postJSON("/auth/sign-in", `{"email":"fern@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeAction(t, rec.Body.Bytes())
	assert.Equal(t, "signed_in", out.Status)
	assert.Equal(t, "/admin", out.RedirectTo)
	require.NotNil(t, out.State)
	assert.True(t, out.State.IsAdmin)
	assert.Equal(t, "admin", out.State.Role)
}

func TestSignIn_BadPasswordJSON(t *testing.T) {
	env := newTestEnv(t, signedOutState())
	before := env.session.Snapshot()

	rec := env.postJSON("/auth/sign-in", `{"email":"fern@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized","message":"Invalid email or password."}`, rec.Body.String())
	assert.Equal(t, before, env.session.Snapshot())
}

func TestSignIn_BadPasswordBrowserRerendersForm(t *testing.T) {
	env := newTestEnv(t, signedOutState())

	rec := env.postForm("/auth/sign-in", url.Values{
		"email":        {"fern@example.com"},
		"password":     {"nope"},
		"redirect_uri": {"/plants"},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Invalid email or password.")
	assert.Contains(t, body, `value="fern@example.com"`)
	assert.Contains(t, body, `value="/plants"`)
}

func TestSignIn_RejectsUnknownJSONFields(t *testing.T) {
	env := newTestEnv(t, signedOutState())
	rec := env.postJSON("/auth/sign-in", `{"email":"fern@example.com","pass":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignIn_FormWithoutCSRFRejected(t *testing.T) {
	env := newTestEnv(t, signedOutState())
	req := formRequest("/auth/sign-in", url.Values{"email": {"fern@example.com"}, "password": {"hunter22"}})
	rec := env.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, env.session.Snapshot().Authenticated())
}

func TestSignIn_Throttled(t *testing.T) {
	limiter := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1})
	env := newTestEnv(t, signedOutState(), func(s *RouterServices) { s.SignInLimiter = limiter })

	first := env.postJSON("/auth/sign-in", `{"email":"fern@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, first.Code)

	second := env.postJSON("/auth/sign-in", `{"email":"fern@example.com","password":"hunter22"}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
	assert.False(t, env.session.Snapshot().Authenticated())
}

func TestSignUp_LandsOnVerifyEmail(t *testing.T) {
	env := newTestEnv(t, signedOutState())

	rec := env.postForm("/auth/sign-up", url.Values{
		"email":     {"New@Example.com"},
		"password":  {"hunter22"},
		"full_name": {"New Gardener"},
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/verify-email?email=new%40example.com", rec.Header().Get("Location"))

	require.Len(t, env.auth.signUps, 1)
	assert.Equal(t, "New Gardener", env.auth.signUps[0].FullName)
}

func TestSignUp_AutoConfirmedLandsOnHome(t *testing.T) {
	env := newTestEnv(t, signedOutState())
	env.auth.autoConfirm = true

	rec := env.postJSON("/auth/sign-up", `{"email":"new@example.com","password":"hunter22","full_name":"New"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	out := decodeAction(t, rec.Body.Bytes())
	assert.Equal(t, "signed_up", out.Status)
	assert.Equal(t, "/", out.RedirectTo)
}

func TestSignUp_DuplicateIsConflict(t *testing.T) {
	env := newTestEnv(t, signedOutState())
	rec := env.postJSON("/auth/sign-up", `{"email":"taken@example.com","password":"hunter22"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already exists")
}

func TestSignOut_RedirectsToSignIn(t *testing.T) {
	env := newTestEnv(t, verifiedState(domainauth.RoleUser))

	rec := env.postForm("/auth/sign-out", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/sign-in", rec.Header().Get("Location"))
	assert.Equal(t, 1, env.auth.signOuts)
	assert.False(t, env.session.Snapshot().Authenticated())
}

func TestState_Snapshot(t *testing.T) {
	env := newTestEnv(t, verifiedState(domainauth.RoleAdmin))

	rec := env.get("/auth/state", "Accept", "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var view stateView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.True(t, view.Authenticated)
	assert.False(t, view.Loading)
	assert.True(t, view.IsAdmin)
	require.NotNil(t, view.User)
	assert.Equal(t, "u1", view.User.ID)
	assert.True(t, view.User.EmailVerified)
	assert.Equal(t, "Fern Gully", view.User.DisplayName)
}

func TestState_SignedOut(t *testing.T) {
	env := newTestEnv(t, signedOutState())
	rec := env.get("/auth/state")
	assert.JSONEq(t, `{"authenticated":false,"loading":false,"is_admin":false,"generation":1}`, rec.Body.String())
}

func TestSignInPage_RedirectsVerifiedUser(t *testing.T) {
	env := newTestEnv(t, verifiedState(domainauth.RoleUser))
	rec := env.get("/auth/sign-in?redirect_uri=/plants", "Accept", "text/html")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/plants", rec.Header().Get("Location"))
}

func TestSignInPage_Renders(t *testing.T) {
	env := newTestEnv(t, signedOutState())
	rec := env.get("/auth/sign-in?redirect_uri=/garden", "Accept", "text/html")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="/garden"`)
}

func TestVerifyEmailPage(t *testing.T) {
	env := newTestEnv(t, signedOutState())
	rec := env.get("/auth/verify-email?email=new%40example.com", "Accept", "text/html")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "new@example.com")
	assert.NotContains(t, body, "/auth/dev/verify-email")
}

func TestDevVerifyEmail_OnlyInDevMode(t *testing.T) {
	env := newTestEnv(t, signedOutState())
	rec := env.postJSON("/auth/dev/verify-email", `{"email":"fern@example.com"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDevVerifyEmail_VerifiesCurrentUser(t *testing.T) {
	unverified := verifiedState(domainauth.RoleUser)
	unverified.User.EmailVerifiedAt = nil
	env := newTestEnv(t, unverified, withDev())

	page := env.get("/auth/verify-email", "Accept", "text/html")
	assert.Contains(t, page.Body.String(), "/auth/dev/verify-email")

	rec := env.postForm("/auth/dev/verify-email", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/garden", rec.Header().Get("Location"))
	assert.True(t, env.session.Snapshot().User.EmailVerified())
}

func TestDevVerifyEmail_UnknownAddress(t *testing.T) {
	env := newTestEnv(t, signedOutState(), withDev())
	rec := env.postJSON("/auth/dev/verify-email", `{"email":"ghost@example.com"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecovery_Flow(t *testing.T) {
	env := newTestEnv(t, signedOutState())

	rec := env.postJSON("/auth/recover", `{"email":"fern@example.com"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	out := decodeAction(t, rec.Body.Bytes())
	assert.Equal(t, "/auth/reset-password", out.RedirectTo)
	assert.True(t, out.State.Recovering)

	page := env.get("/auth/reset-password", "Accept", "text/html")
	assert.Equal(t, http.StatusOK, page.Code)

	short := env.postJSON("/auth/update-password", `{"password":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, short.Code)

	done := env.postForm("/auth/update-password", url.Values{"password": {"new-password"}})
	assert.Equal(t, http.StatusSeeOther, done.Code)
	assert.Equal(t, "/garden", done.Header().Get("Location"))
	assert.Equal(t, []string{"new-password"}, env.auth.passwords)
	assert.False(t, env.session.Snapshot().Recovering)
}

func TestRecovery_UnknownAddressLooksTheSame(t *testing.T) {
	env := newTestEnv(t, signedOutState())
	rec := env.postJSON("/auth/recover", `{"email":"someone@example.com"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	out := decodeAction(t, rec.Body.Bytes())
	assert.Equal(t, "recovery_started", out.Status)
}

func TestLandingPath(t *testing.T) {
	unverified := verifiedState(domainauth.RoleUser)
	unverified.User.EmailVerifiedAt = nil

	assert.Equal(t, "/auth/sign-in", landingPath(signedOutState()))
	assert.Equal(t, "/auth/verify-email?email=fern%40example.com", landingPath(unverified))
	assert.Equal(t, "/admin", landingPath(verifiedState(domainauth.RoleAdmin)))
	assert.Equal(t, "/garden", landingPath(verifiedState(domainauth.RoleUser)))
	assert.Equal(t, "/", landingPath(verifiedState(domainauth.RoleNone)))
}
