package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks struct tags first, then the rules that span sections or
// live in the section's own Validate method.
func Validate(cfg *Config) error {
	if err := getValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return formatValidationErrors(verrs)
		}
		return err
	}

	if err := cfg.SMB.Validate(); err != nil {
		return fmt.Errorf("smb: %w", err)
	}

	if cfg.API.Auth.Enabled && cfg.API.Auth.JWTSecret == "" {
		return errors.New("api.auth.jwt_secret is required when api.auth.enabled is true")
	}

	if cfg.Metrics.Enabled && !cfg.API.IsEnabled() {
		return errors.New("metrics are served by the API server: enable api or disable metrics")
	}

	return nil
}

// formatValidationErrors reports every failed field with the tag that
// rejected it, e.g. "Config.Logging.Level failed on 'oneof' (got XML)".
func formatValidationErrors(verrs validator.ValidationErrors) error {
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s failed on '%s=%s'", fe.Namespace(), fe.Tag(), fe.Param())
		}
		if v := fe.Value(); v != nil && fmt.Sprint(v) != "" {
			msg = fmt.Sprintf("%s (got %v)", msg, v)
		}
		errs = append(errs, errors.New(msg))
	}
	return errors.Join(errs...)
}
