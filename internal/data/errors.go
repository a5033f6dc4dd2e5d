package data

import apperrors "github.com/target/greenhouse/internal/errors"

// Shared sentinel errors for data-layer repositories.
var (
	ErrUserIDRequired = apperrors.ValidationField("user_id", "user_id is required")
)
