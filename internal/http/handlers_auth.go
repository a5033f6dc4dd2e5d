package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/target/greenhouse/internal/domain/auth"
	apperrors "github.com/target/greenhouse/internal/errors"
	"github.com/target/greenhouse/internal/ports"
	"github.com/target/greenhouse/internal/service"
)

// credentialsForm is accepted as JSON or as a url-encoded form.
type credentialsForm struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"full_name"`
	RedirectURI string `json:"redirect_uri"`
}

// readCredentials decodes the body. ok=false means an error response was written.
func readCredentials(w http.ResponseWriter, r *http.Request) (credentialsForm, bool) {
	var in credentialsForm
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return in, DecodeJSON(w, r, &in)
	}
	if err := r.ParseForm(); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_form", Err: err})
		return in, false
	}
	in.Email = r.PostFormValue("email")
	in.Password = r.PostFormValue("password")
	in.FullName = r.PostFormValue("full_name")
	in.RedirectURI = r.PostFormValue("redirect_uri")
	return in, true
}

// actionResponse is the API reply to a credential command.
type actionResponse struct {
	Status     string     `json:"status"`
	RedirectTo string     `json:"redirect_to,omitempty"`
	State      *stateView `json:"state,omitempty"`
}

// settle waits until cond holds so the response reflects the provider's event. On
// timeout it proceeds with whatever the session shows.
func (s *Server) settle(ctx context.Context, cond func(domainauth.State) bool) domainauth.State {
	ctx, cancel := context.WithTimeout(ctx, s.settleTimeout)
	defer cancel()
	st, err := s.session.WaitFor(ctx, cond)
	if err != nil {
		s.logger.WarnContext(ctx, "session did not settle before responding", "error", err)
	}
	return st
}

func signedInSettled(st domainauth.State) bool { return st.Authenticated() && !st.RolePending }

func signedOutSettled(st domainauth.State) bool { return !st.Authenticated() }

// landingPath is where a freshly authenticated user goes absent an explicit return path.
func landingPath(st domainauth.State) string {
	switch {
	case st.User == nil:
		return domainauth.PathSignIn
	case !st.User.EmailVerified():
		return domainauth.VerifyEmailURL(st.User.Email)
	case st.Role == domainauth.RoleAdmin:
		return domainauth.PathAdmin
	case st.Role == domainauth.RoleUser:
		return "/garden"
	default:
		return domainauth.PathHome
	}
}

// SignInPage renders the sign-in form.
// GET /auth/sign-in?redirect_uri=<optional>.
func (s *Server) SignInPage(w http.ResponseWriter, r *http.Request) {
	state := s.session.Snapshot()
	returnTo := domainauth.SafeReturnPath(r.URL.Query().Get("redirect_uri"))
	if !state.IsLoading && state.Authenticated() && state.User.EmailVerified() {
		redirectBrowser(w, r, firstNonEmpty(returnTo, landingPath(state)))
		return
	}

	data := s.newPageData(r, PageSignIn, "Sign in", state)
	data.RedirectURI = returnTo
	s.render(w, r, http.StatusOK, data)
}

// SignIn forwards credentials to the provider.
// POST /auth/sign-in.
func (s *Server) SignIn(w http.ResponseWriter, r *http.Request) {
	in, ok := readCredentials(w, r)
	if !ok {
		return
	}
	if err := s.auth.SignIn(r.Context(), in.Email, in.Password); err != nil {
		s.credentialFailure(w, r, "sign in", err, in)
		return
	}

	state := s.settle(r.Context(), signedInSettled)
	dest := landingPath(state)
	if state.Authenticated() && state.User.EmailVerified() {
		dest = firstNonEmpty(domainauth.SafeReturnPath(in.RedirectURI), dest)
	}
	s.respondAction(w, r, http.StatusOK, "signed_in", dest, state)
}

// SignUp creates an account. Providers that sign new accounts in straight away land
// the user on the verification page until the address is confirmed.
// POST /auth/sign-up.
func (s *Server) SignUp(w http.ResponseWriter, r *http.Request) {
	in, ok := readCredentials(w, r)
	if !ok {
		return
	}
	err := s.auth.SignUp(r.Context(), ports.SignUpInput{
		Email:    in.Email,
		Password: in.Password,
		FullName: in.FullName,
	})
	if err != nil {
		s.credentialFailure(w, r, "sign up", err, in)
		return
	}

	state := s.settle(r.Context(), signedInSettled)
	dest := domainauth.VerifyEmailURL(strings.ToLower(strings.TrimSpace(in.Email)))
	if state.Authenticated() && state.User.EmailVerified() {
		dest = landingPath(state)
	}
	s.respondAction(w, r, http.StatusCreated, "signed_up", dest, state)
}

// SignOut ends the session.
// POST /auth/sign-out.
func (s *Server) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.SignOut(r.Context()); err != nil {
		s.logger.ErrorContext(r.Context(), "sign out failed", "error", err)
		s.writeFailure(w, r, err)
		return
	}
	state := s.settle(r.Context(), signedOutSettled)
	s.respondAction(w, r, http.StatusOK, "signed_out", domainauth.PathSignIn, state)
}

// State returns a JSON snapshot of the session.
// GET /auth/state.
func (s *Server) State(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, s.stateView(s.session.Snapshot()))
}

// VerifyEmailPage is the holding page shown until the address is confirmed.
// GET /auth/verify-email?email=<address>.
func (s *Server) VerifyEmailPage(w http.ResponseWriter, r *http.Request) {
	state := s.session.Snapshot()
	if state.Authenticated() && state.User.EmailVerified() {
		redirectBrowser(w, r, landingPath(state))
		return
	}

	data := s.newPageData(r, PageVerifyEmail, "Verify your email", state)
	data.Email = strings.TrimSpace(r.URL.Query().Get("email"))
	if data.Email == "" && state.User != nil {
		data.Email = state.User.Email
	}
	s.render(w, r, http.StatusOK, data)
}

// DevVerifyEmail marks an address verified without a mailbox round trip. Dev only.
// POST /auth/dev/verify-email.
func (s *Server) DevVerifyEmail(w http.ResponseWriter, r *http.Request) {
	in, ok := readCredentials(w, r)
	if !ok {
		return
	}
	email := strings.TrimSpace(in.Email)
	if email == "" {
		if st := s.session.Snapshot(); st.User != nil {
			email = st.User.Email
		}
	}
	if email == "" {
		s.writeFailure(w, r, apperrors.ValidationField("email", "Enter the email address to verify."))
		return
	}
	if err := s.verifier.VerifyEmail(r.Context(), email); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	state := s.session.Snapshot()
	if state.User != nil && strings.EqualFold(state.User.Email, email) {
		state = s.settle(r.Context(), func(st domainauth.State) bool {
			return st.User != nil && st.User.EmailVerified() && !st.RolePending
		})
	}
	s.respondAction(w, r, http.StatusOK, "verified", landingPath(state), state)
}

// BeginRecovery starts the password reset flow.
// POST /auth/recover.
func (s *Server) BeginRecovery(w http.ResponseWriter, r *http.Request) {
	in, ok := readCredentials(w, r)
	if !ok {
		return
	}
	email, err := service.NormalizeEmail(in.Email)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if err := s.recovery.BeginRecovery(r.Context(), email); err != nil {
		s.logger.ErrorContext(r.Context(), "begin recovery failed", "error", err)
		s.writeFailure(w, r, err)
		return
	}

	state := s.settle(r.Context(), func(st domainauth.State) bool { return st.Recovering })
	dest := "/auth/reset-password"
	if !state.Recovering {
		// Unknown addresses look the same as known ones.
		dest = domainauth.PathSignIn
	}
	s.respondAction(w, r, http.StatusAccepted, "recovery_started", dest, state)
}

// ResetPasswordPage renders the new-password form for a recovering session.
// GET /auth/reset-password.
func (s *Server) ResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	state := s.session.Snapshot()
	if !state.Authenticated() {
		redirectBrowser(w, r, domainauth.PathSignIn)
		return
	}
	s.render(w, r, http.StatusOK, s.newPageData(r, PageResetPassword, "Reset password", state))
}

// UpdatePassword replaces the signed-in account's password.
// POST /auth/update-password.
func (s *Server) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	in, ok := readCredentials(w, r)
	if !ok {
		return
	}
	if len(in.Password) < service.MinPasswordLength {
		err := apperrors.ValidationField("password", "Password must be at least 6 characters.")
		if IsBrowserRequest(r) {
			data := s.newPageData(r, PageResetPassword, "Reset password", s.session.Snapshot())
			data.Error = apperrors.UserMessage(err, "")
			s.render(w, r, http.StatusBadRequest, data)
			return
		}
		WriteAppError(w, err)
		return
	}
	if err := s.recovery.UpdatePassword(r.Context(), in.Password); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	state := s.settle(r.Context(), func(st domainauth.State) bool { return !st.Recovering && !st.RolePending })
	s.respondAction(w, r, http.StatusOK, "password_updated", landingPath(state), state)
}

func (s *Server) respondAction(w http.ResponseWriter, r *http.Request, status int, label, dest string, state domainauth.State) {
	if IsBrowserRequest(r) {
		redirectBrowser(w, r, dest)
		return
	}
	view := s.stateView(state)
	WriteJSON(w, status, actionResponse{Status: label, RedirectTo: dest, State: &view})
}

// credentialFailure re-renders the form for browsers and returns the error as JSON
// otherwise. Session state is untouched either way.
func (s *Server) credentialFailure(w http.ResponseWriter, r *http.Request, op string, err error, in credentialsForm) {
	if status := StatusForError(err); status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), op+" failed", "error", err)
	} else {
		s.logger.InfoContext(r.Context(), op+" rejected", "code", apperrors.GetCode(err))
	}

	if !IsBrowserRequest(r) {
		WriteAppError(w, err)
		return
	}
	data := s.newPageData(r, PageSignIn, "Sign in", s.session.Snapshot())
	data.Error = apperrors.UserMessage(err, "Something went wrong. Please try again.")
	data.Email = in.Email
	data.RedirectURI = domainauth.SafeReturnPath(in.RedirectURI)
	s.render(w, r, StatusForError(err), data)
}

func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	if IsBrowserRequest(r) {
		http.Error(w, apperrors.UserMessage(err, "Something went wrong. Please try again."), StatusForError(err))
		return
	}
	WriteAppError(w, err)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, data PageData) {
	if err := s.renderer.Render(w, r, status, data); err != nil {
		if !errors.Is(err, context.Canceled) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
}

// stateView is the JSON form of the session state.
type stateView struct {
	Authenticated bool       `json:"authenticated"`
	Loading       bool       `json:"loading"`
	Recovering    bool       `json:"recovering,omitempty"`
	RolePending   bool       `json:"role_pending,omitempty"`
	Role          string     `json:"role,omitempty"`
	IsAdmin       bool       `json:"is_admin"`
	Generation    uint64     `json:"generation"`
	User          *userView  `json:"user,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

type userView struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	FullName      string `json:"full_name,omitempty"`
	DisplayName   string `json:"display_name"`
}

func (s *Server) stateView(st domainauth.State) stateView {
	v := stateView{
		Authenticated: st.Authenticated(),
		Loading:       st.IsLoading,
		Recovering:    st.Recovering,
		RolePending:   st.RolePending,
		IsAdmin:       st.IsAdmin(),
		Generation:    st.Generation,
	}
	if st.User == nil {
		return v
	}
	v.Role = string(st.Role)
	v.User = &userView{
		ID:            st.User.ID,
		Email:         st.User.Email,
		EmailVerified: st.User.EmailVerified(),
		FullName:      st.User.FullName(),
		DisplayName:   s.displayName(st),
	}
	if st.Session != nil && !st.Session.ExpiresAt.IsZero() {
		exp := st.Session.ExpiresAt
		v.ExpiresAt = &exp
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
