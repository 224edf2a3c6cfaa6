package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate checks struct tags first, then the rules that span sections.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	// Report yaml key paths rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.Struct(cfg); err != nil {
		return formatValidationErrors(err)
	}

	rl := cfg.RateLimit
	if rl.Backend == "redis" && strings.TrimSpace(rl.Redis.Addr) == "" {
		return errors.New("rate_limit.redis.addr is required when backend is redis")
	}
	if rl.Enabled {
		if rl.RPS <= 0 {
			return errors.New("rate_limit.rps must be > 0 when enabled")
		}
		if rl.Burst <= 0 {
			return errors.New("rate_limit.burst must be > 0 when enabled")
		}
	}
	if rl.Scope == "user" && cfg.Auth.HMACSecret == "" {
		return errors.New("rate_limit.scope user needs auth.hmac_secret to identify callers")
	}

	for i, r := range cfg.Routes {
		if r.RateLimit.Enabled == nil || !*r.RateLimit.Enabled {
			continue
		}
		if r.RateLimit.RPS <= 0 && rl.RPS <= 0 {
			return fmt.Errorf("routes[%d].rate_limit.rps must be > 0 when enabled", i)
		}
		if r.RateLimit.Burst <= 0 && rl.Burst <= 0 {
			return fmt.Errorf("routes[%d].rate_limit.burst must be > 0 when enabled", i)
		}
	}
	return nil
}

func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, formatFieldError(e))
	}
	return errors.New(strings.Join(messages, "; "))
}

func formatFieldError(e validator.FieldError) string {
	// Drop the root struct name: "Config.server.addr" -> "server.addr".
	_, field, _ := strings.Cut(e.Namespace(), ".")

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "gt", "gte", "lte":
		return fmt.Sprintf("%s must be %s %s", field, map[string]string{"gt": ">", "gte": ">=", "lte": "<="}[e.Tag()], e.Param())
	case "unique":
		return fmt.Sprintf("%s must not repeat %s", field, strings.ToLower(e.Param()))
	case "cidr|ip":
		return fmt.Sprintf("%s must be an IP or CIDR", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
