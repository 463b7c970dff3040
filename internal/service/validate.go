package service

import (
	"fmt"
	"unicode/utf8"

	"github.com/snipvault/snipvault/internal/config"
	appErr "github.com/snipvault/snipvault/internal/pkg/errors"
)

const maxDescriptionChars = 500

// validateCreateShare collects every violation instead of stopping at the
// first, so the caller sees the complete list in one round trip.
func validateCreateShare(input CreateShareInput, limits config.ShareConfig) error {
	var violations []appErr.FieldViolation
	add := func(field, message string) {
		violations = append(violations, appErr.FieldViolation{Field: field, Message: message})
	}

	if input.SnippetID == "" {
		add("snippet_id", "is required")
	}
	if !input.Permission.Valid() {
		add("permission", "must be one of view, view_copy, view_download")
	}
	if input.Password != "" && utf8.RuneCountInString(input.Password) < limits.MinPasswordLen {
		add("password", fmt.Sprintf("must be at least %d characters", limits.MinPasswordLen))
	}
	if input.ExpiresInHours < 0 || input.ExpiresInHours > limits.MaxExpireHours {
		add("expires_in_hours", fmt.Sprintf("must be between 0 and %d", limits.MaxExpireHours))
	}
	if input.MaxAccessCount < 0 || input.MaxAccessCount > limits.MaxAccessLimit {
		add("max_access_count", fmt.Sprintf("must be between 0 and %d", limits.MaxAccessLimit))
	}
	if utf8.RuneCountInString(input.Description) > maxDescriptionChars {
		add("description", fmt.Sprintf("must be at most %d characters", maxDescriptionChars))
	}

	if len(violations) > 0 {
		return &appErr.ValidationError{Violations: violations}
	}
	return nil
}

func validateUpdateShare(input UpdateShareInput, limits config.ShareConfig) error {
	var violations []appErr.FieldViolation
	add := func(field, message string) {
		violations = append(violations, appErr.FieldViolation{Field: field, Message: message})
	}

	if input.Permission != nil && !input.Permission.Valid() {
		add("permission", "must be one of view, view_copy, view_download")
	}
	if input.Password != nil && *input.Password != "" && utf8.RuneCountInString(*input.Password) < limits.MinPasswordLen {
		add("password", fmt.Sprintf("must be at least %d characters", limits.MinPasswordLen))
	}
	if input.ExtendHours < 0 || input.ExtendHours > limits.MaxExpireHours {
		add("extend_hours", fmt.Sprintf("must be between 0 and %d", limits.MaxExpireHours))
	}
	if input.MaxAccessCount != nil && (*input.MaxAccessCount < 0 || *input.MaxAccessCount > limits.MaxAccessLimit) {
		add("max_access_count", fmt.Sprintf("must be between 0 and %d", limits.MaxAccessLimit))
	}
	if input.Description != nil && utf8.RuneCountInString(*input.Description) > maxDescriptionChars {
		add("description", fmt.Sprintf("must be at most %d characters", maxDescriptionChars))
	}

	if len(violations) > 0 {
		return &appErr.ValidationError{Violations: violations}
	}
	return nil
}
