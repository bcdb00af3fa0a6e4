package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

var markers = []error{ErrValidation, ErrNotFound, ErrExternalTool, ErrConfiguration, ErrTimeout, ErrTransient}

// IsMarker reports whether err is itself one of the sentinel markers.
func IsMarker(err error) bool {
	for _, marker := range markers {
		if err == marker {
			return true
		}
	}
	return false
}

// Wrap builds an error message that includes pipeline context while tagging it
// with the provided marker so callers can classify it later. The marker should
// be one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsUserError reports whether err stems from caller input (bad filename,
// unknown tape, empty segment list) rather than an environment or tool fault.
func IsUserError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound)
}

// UserMessage strips the marker prefix so the remaining text reads as a
// user-facing sentence.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range markers {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
