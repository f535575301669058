package validation

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// schemes accepted in transport addresses
	addressSchemes = map[string]bool{
		"tcp":     true,
		"tcp4":    true,
		"tcp6":    true,
		"tls+tcp": true,
		"ipc":     true,
		"inproc":  true,
		"ws":      true,
		"wss":     true,
	}
)

func init() {
	validate = validator.New()
	validate.RegisterValidation("address", func(fl validator.FieldLevel) bool {
		return IsAddress(fl.Field().String())
	})
}

// IsAddress reports whether addr names a reachable endpoint: either
// host:port or scheme://rest with a known scheme.
func IsAddress(addr string) bool {
	scheme, rest, found := strings.Cut(addr, "://")
	if !found {
		_, port, err := net.SplitHostPort(addr)
		return err == nil && port != ""
	}
	if !addressSchemes[scheme] || rest == "" {
		return false
	}
	if strings.HasPrefix(scheme, "tcp") || strings.HasPrefix(scheme, "ws") || scheme == "tls+tcp" {
		host, _, _ := strings.Cut(rest, "/")
		_, port, err := net.SplitHostPort(host)
		return err == nil && port != ""
	}
	return true
}

// Struct validates v using its `validate` struct tags
func Struct(v any) error {
	if v == nil {
		return errors.New("value cannot be nil")
	}
	if err := validate.Struct(v); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	msgs := make([]error, 0, len(validationErrs))
	for _, e := range validationErrs {
		field := e.Namespace()
		param := e.Param()

		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Errorf("%s: field is required", field))
		case "min", "gte":
			msgs = append(msgs, fmt.Errorf("%s: must be at least %s", field, param))
		case "max", "lte":
			msgs = append(msgs, fmt.Errorf("%s: must not exceed %s", field, param))
		case "gt":
			msgs = append(msgs, fmt.Errorf("%s: must be greater than %s", field, param))
		case "ltfield":
			msgs = append(msgs, fmt.Errorf("%s: must be less than %s", field, param))
		case "gtfield":
			msgs = append(msgs, fmt.Errorf("%s: must be greater than %s", field, param))
		case "oneof":
			msgs = append(msgs, fmt.Errorf("%s: must be one of [%s]", field, param))
		case "address":
			msgs = append(msgs, fmt.Errorf("%s: %q is not a valid address", field, e.Value()))
		default:
			msgs = append(msgs, fmt.Errorf("%s: validation failed (%s)", field, e.Tag()))
		}
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(msgs...))
}
