// Package validation checks user-supplied input before any API call.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	k8svalidation "k8s.io/apimachinery/pkg/util/validation"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the shared validator with the orchestration-specific
// tags registered:
//
//	dns1123   a DNS-1123 subdomain (object names)
//	labelpair a single key=value label pair
//	cron      a standard five-field cron schedule
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("dns1123", func(fl validator.FieldLevel) bool {
			return len(k8svalidation.IsDNS1123Subdomain(fl.Field().String())) == 0
		})
		_ = v.RegisterValidation("labelpair", func(fl validator.FieldLevel) bool {
			_, _, err := ParseLabelPair(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
			_, err := cron.ParseStandard(fl.Field().String())
			return err == nil
		})
		instance = v
	})
	return instance
}

// Struct validates s and returns a single user-facing message listing every
// failed field, or nil.
func Struct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "dns1123":
		return fmt.Sprintf("%s %q must be a lowercase DNS-1123 name", fe.Field(), fe.Value())
	case "labelpair":
		return fmt.Sprintf("%s %q must be a single key=value label", fe.Field(), fe.Value())
	case "cron":
		return fmt.Sprintf("%s %q is not a valid cron schedule", fe.Field(), fe.Value())
	case "url", "http_url":
		return fmt.Sprintf("%s %q must be an absolute URL", fe.Field(), fe.Value())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

// ParseLabelPair splits "key=value" and checks both halves are valid label
// syntax.
func ParseLabelPair(s string) (string, string, error) {
	key, value, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return "", "", fmt.Errorf("label %q is not key=value", s)
	}
	if errs := k8svalidation.IsQualifiedName(key); len(errs) > 0 {
		return "", "", fmt.Errorf("label key %q: %s", key, strings.Join(errs, ", "))
	}
	if errs := k8svalidation.IsValidLabelValue(value); len(errs) > 0 {
		return "", "", fmt.Errorf("label value %q: %s", value, strings.Join(errs, ", "))
	}
	return key, value, nil
}
