package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err:  &AppError{Code: ErrCodeNotFound, Message: "resource not found"},
			want: "resource not found",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeInternal,
				Message: "failed to process",
				Cause:   errors.New("underlying error"),
			},
			want: "failed to process: underlying error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name  string
		err   *AppError
		code  ErrorCode
		check func(error) bool
	}{
		{"not found", NotFound("missing"), ErrCodeNotFound, IsNotFound},
		{"conflict", Conflict("exists"), ErrCodeConflict, IsConflict},
		{"validation", Validation("bad"), ErrCodeValidation, IsValidation},
		{"unauthorized", Unauthorized("nope"), ErrCodeUnauthorized, IsUnauthorized},
		{"rate limited", RateLimited("slow down"), ErrCodeRateLimited, IsRateLimited},
		{"internal", Internal("boom"), ErrCodeInternal, IsInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %v, want %v", tt.err.Code, tt.code)
			}
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !tt.check(wrapped) {
				t.Errorf("predicate did not match wrapped %v", wrapped)
			}
			if GetCode(wrapped) != tt.code {
				t.Errorf("GetCode() = %v, want %v", GetCode(wrapped), tt.code)
			}
		})
	}
}

func TestFormattedConstructorsKeepLiteralPercent(t *testing.T) {
	if got := Validation("100% wrong").Message; got != "100% wrong" {
		t.Errorf("Validation() message = %q", got)
	}
	literal := "rate %d%% exceeded for %s"
	for _, err := range []*AppError{
		NotFound(literal), Conflict(literal), Validation(literal), ValidationField("f", literal),
		Unauthorized(literal), RateLimited(literal), Internal(literal),
	} {
		if err.Message != literal {
			t.Errorf("%s message = %q, want %q", err.Code, err.Message, literal)
		}
	}
	if got := Validationf("field %s", "email").Message; got != "field email" {
		t.Errorf("Validationf() message = %q", got)
	}
	if got := NotFoundf("user %d", 7).Message; got != "user 7" {
		t.Errorf("NotFoundf() message = %q", got)
	}
}

func TestValidationField(t *testing.T) {
	err := ValidationField("email", "Enter a valid email address.")
	if GetField(err) != "email" {
		t.Errorf("GetField() = %q, want email", GetField(err))
	}
	if GetField(errors.New("plain")) != "" {
		t.Errorf("GetField() on plain error should be empty")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, ErrCodeInternal, "x") != nil {
		t.Fatalf("Wrap(nil) should be nil")
	}
	cause := errors.New("dial tcp: refused")
	err := Wrapf(cause, ErrCodeUnavailable, "role store %s", "down")
	if !errors.Is(err, cause) {
		t.Errorf("wrapped error should unwrap to cause")
	}
	if !IsUnavailable(err) {
		t.Errorf("expected unavailable code")
	}
	if err.Message != "role store down" {
		t.Errorf("message = %q", err.Message)
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(Unauthorized("Invalid email or password."), "fallback"); got != "Invalid email or password." {
		t.Errorf("UserMessage() = %q", got)
	}
	if got := UserMessage(errors.New("raw"), "fallback"); got != "fallback" {
		t.Errorf("UserMessage() = %q, want fallback", got)
	}
}
