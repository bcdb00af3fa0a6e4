package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("toml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := structValidator.Struct(c); err != nil {
		return describeValidation(err)
	}
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validateBackup(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DefaultProject != "" && !validSlug(c.Paths.DefaultProject) {
		return fmt.Errorf("paths.default_project %q must use lowercase letters, digits, '-' or '_'", c.Paths.DefaultProject)
	}
	return nil
}

func (c *Config) validateMedia() error {
	if c.Media.MinSegmentSeconds > 3600 {
		return errors.New("media.min_segment_seconds must not exceed one hour")
	}
	return nil
}

func (c *Config) validateBackup() error {
	if c.Backup.RetrySchedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(c.Backup.RetrySchedule); err != nil {
		return fmt.Errorf("backup.retry_schedule: %w", err)
	}
	return nil
}

// describeValidation turns validator field errors into toml-style key messages.
func describeValidation(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate config: %w", err)
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		key := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			messages = append(messages, fmt.Sprintf("%s failed %s=%s (got %v)", key, fe.Tag(), fe.Param(), fe.Value()))
			continue
		}
		messages = append(messages, fmt.Sprintf("%s failed %s", key, fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(messages, "; "))
}

// ValidSlug reports whether a project slug is safe to use as a directory name.
func ValidSlug(slug string) bool {
	return validSlug(slug)
}

func validSlug(slug string) bool {
	if slug == "" || len(slug) > 64 {
		return false
	}
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}
