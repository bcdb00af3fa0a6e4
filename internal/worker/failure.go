package worker

import (
	"errors"
	"runtime/debug"
	"strings"

	"tapedeck/internal/services"
)

const (
	maxCauseDepth = 5
	maxStackLines = 24
)

// FailureText renders the stored error_text: the user-facing message followed
// by a bounded summary of the error chain or panic stack.
func FailureText(err error, stack string) string {
	if err == nil {
		return "job failed without error detail"
	}
	var b strings.Builder
	b.WriteString(services.UserMessage(err))

	summary := stack
	if summary == "" {
		summary = causeChain(err)
	}
	if summary != "" {
		b.WriteString("\n\n")
		b.WriteString(summary)
	}
	return b.String()
}

func causeChain(err error) string {
	seen := err.Error()
	var lines []string
	for cause := unwrap(err); cause != nil && len(lines) < maxCauseDepth; cause = unwrap(cause) {
		msg := cause.Error()
		if msg == seen || services.IsMarker(cause) {
			continue
		}
		seen = msg
		lines = append(lines, "caused by: "+msg)
	}
	return strings.Join(lines, "\n")
}

// unwrap follows the last wrapped error, which for services.Wrap is the cause
// rather than the marker.
func unwrap(err error) error {
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		errs := multi.Unwrap()
		if len(errs) == 0 {
			return nil
		}
		return errs[len(errs)-1]
	}
	return errors.Unwrap(err)
}

func panicStack() string {
	lines := strings.Split(strings.TrimSpace(string(debug.Stack())), "\n")
	if len(lines) > maxStackLines {
		lines = append(lines[:maxStackLines], "...")
	}
	return strings.Join(lines, "\n")
}
