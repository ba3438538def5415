package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// MaxStreamLength bounds stream names, which become directory names.
	MaxStreamLength = 255

	streamPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

func init() {
	validate = validator.New()
}

// StreamRequest names the stream an ingest request targets.
type StreamRequest struct {
	Stream string `json:"stream" validate:"required,min=1,max=255"`
}

// ValidateStream checks that name is usable as a stream directory: non-empty,
// at most MaxStreamLength bytes, letters, digits, '_' and '-' only.
func ValidateStream(name string) error {
	if err := Struct(&StreamRequest{Stream: name}); err != nil {
		return err
	}
	if !streamPattern.MatchString(name) {
		return fmt.Errorf("Stream: '%s' contains invalid characters (only alphanumeric, underscore and hyphen allowed)", name)
	}
	return nil
}

// Struct validates v against its struct tags and reports the first failure.
func Struct(v any) error {
	if v == nil {
		return errors.New("nil value")
	}
	return formatValidationError(validate.Struct(v))
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	// Return the first validation error in a user-friendly format
	for _, e := range validationErrs {
		field := e.Field()
		tag := e.Tag()
		param := e.Param()

		switch tag {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min", "gte":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "max", "lte":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s]", field, param)
		case "hostname_port":
			return fmt.Errorf("%s: must be a host:port address", field)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, tag)
		}
	}

	return err
}
