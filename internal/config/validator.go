// Package config provides configuration management for hostsync.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a single validation error with a
// user-friendly message.
type ValidationError struct {
	Field   string      // Field path (e.g., "checkmk.endpoint")
	Tag     string      // Validation tag that failed (e.g., "required", "url")
	Value   interface{} // Actual value that failed validation
	Message string      // User-friendly error message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []*ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("config validation failed:\n")
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  - %s: %s\n", err.Field, err.Message))
	}
	return sb.String()
}

// validate is the package-level validator instance.
var validate = validator.New()

// Validate validates the configuration and returns user-friendly error
// messages.
func Validate(cfg *Config) error {
	var validationErrors ValidationErrors

	if err := validate.Struct(cfg); err != nil {
		if fieldErrors, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrors {
				validationErrors = append(validationErrors, &ValidationError{
					Field:   formatFieldName(fe.Namespace()),
					Tag:     fe.Tag(),
					Value:   fe.Value(),
					Message: translateError(fe),
				})
			}
		}
	}

	if errs := validateConnections(cfg); len(errs) > 0 {
		validationErrors = append(validationErrors, errs...)
	}

	if len(validationErrors) > 0 {
		return validationErrors
	}

	return nil
}

// validateConnections runs the business-logic checks the struct tags
// cannot express: unique IDs, compilable filters, sane delimiters.
func validateConnections(cfg *Config) ValidationErrors {
	var errors ValidationErrors

	seen := make(map[string]struct{})
	for i, conn := range cfg.Connections {
		field := func(name string) string {
			return fmt.Sprintf("connections[%d].%s", i, name)
		}

		if _, duplicate := seen[conn.ID]; duplicate {
			errors = append(errors, &ValidationError{
				Field:   field("id"),
				Tag:     "unique",
				Value:   conn.ID,
				Message: fmt.Sprintf("connection id %q is used more than once", conn.ID),
			})
		}
		seen[conn.ID] = struct{}{}

		if conn.Interval < time.Second {
			errors = append(errors, &ValidationError{
				Field:   field("interval"),
				Tag:     "min",
				Value:   conn.Interval,
				Message: "interval must be at least one second",
			})
		}

		for _, pattern := range append(append([]string{}, conn.HostFilters...), conn.HostOvertakeFilters...) {
			if _, err := regexp.Compile(pattern); err != nil {
				errors = append(errors, &ValidationError{
					Field:   field("host_filters"),
					Tag:     "regexp",
					Value:   pattern,
					Message: fmt.Sprintf("invalid filter pattern %q: %v", pattern, err),
				})
			}
		}

		if conn.CSVDelimiter != "" && utf8.RuneCountInString(conn.CSVDelimiter) != 1 {
			errors = append(errors, &ValidationError{
				Field:   field("csv_delimiter"),
				Tag:     "len",
				Value:   conn.CSVDelimiter,
				Message: "csv_delimiter must be a single character",
			})
		}

		if conn.LabelPathTemplate != "" && (strings.HasPrefix(conn.LabelPathTemplate, "/") || strings.HasSuffix(conn.LabelPathTemplate, "/")) {
			errors = append(errors, &ValidationError{
				Field:   field("label_path_template"),
				Tag:     "format",
				Value:   conn.LabelPathTemplate,
				Message: "label_path_template must not start or end with a slash",
			})
		}
	}

	return errors
}

// formatFieldName converts the validator field namespace to a
// user-friendly format.
// Example: "Config.Checkmk.Endpoint" -> "checkmk.endpoint"
func formatFieldName(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:] // Remove "Config"
	}

	for i, part := range parts {
		parts[i] = strings.ToLower(part)
	}

	return strings.Join(parts, ".")
}

// translateError converts a validator.FieldError to a user-friendly
// message.
func translateError(fe validator.FieldError) string {
	field := formatFieldName(fe.Namespace())

	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "url":
		return fmt.Sprintf("invalid URL format: %v", fe.Value())
	case "gte":
		return fmt.Sprintf("value must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("value must be less than or equal to %s", fe.Param())
	case "min":
		return fmt.Sprintf("must contain at least %s entries", fe.Param())
	case "oneof":
		return fmt.Sprintf("value must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("validation failed on '%s' tag for field '%s'", fe.Tag(), field)
	}
}
