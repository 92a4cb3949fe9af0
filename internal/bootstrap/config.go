package bootstrap

import (
	"fmt"
	"net/url"

	"github.com/go-authgate/sallyport/internal/config"
)

// validateAllConfiguration validates all configuration settings
func validateAllConfiguration(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := validateRedirectTargets(cfg); err != nil {
		return fmt.Errorf("invalid redirect configuration: %w", err)
	}
	return nil
}

// validateRedirectTargets checks that the URLs the authorize endpoint sends
// browsers to are absolute.
func validateRedirectTargets(cfg *config.Config) error {
	targets := []struct {
		name, value string
	}{
		{"BASE_URL", cfg.BaseURL},
		{"STEP_UP_URL", cfg.StepUpURL},
		{"LOGIN_URL", cfg.LoginURL},
	}
	for _, t := range targets {
		if t.value == "" {
			continue
		}
		u, err := url.Parse(t.value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", t.name, t.value)
		}
	}
	return nil
}
