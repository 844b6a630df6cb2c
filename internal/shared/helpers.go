// Package shared holds small helpers used by both the domain types and the
// adapters.
package shared

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// NormalizePipName lowercases a Python package name and replaces runs of
// underscores, dots and hyphens with a single hyphen (PEP 503).
func NormalizePipName(value string) string {
	lower := strings.ToLower(strings.TrimSpace(value))
	var b strings.Builder
	separator := false
	for _, r := range lower {
		if r == '_' || r == '.' || r == '-' {
			separator = true
			continue
		}
		if separator && b.Len() > 0 {
			b.WriteByte('-')
		}
		separator = false
		b.WriteRune(r)
	}
	return b.String()
}

// HTTPStatusErrorWithBody creates a formatted error that includes the
// response body for non-2xx HTTP responses.
func HTTPStatusErrorWithBody(status int, url string, body string) error {
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("status=%d url=%s", status, url)
	}
	return fmt.Errorf("status=%d url=%s response=%s", status, url, strings.TrimSpace(body))
}

// CommandError wraps a command execution error with its trimmed output
// for cleaner error messages.
func CommandError(output []byte, err error) error {
	trimmed := strings.TrimSpace(string(output))
	if trimmed == "" {
		return err
	}
	return fmt.Errorf("%s: %w", trimmed, err)
}

// DescribeError renders a coded error as its message followed by the cause
// chain. It never calls Error on a builder, which fills an empty cause with a
// copy of the message and so mutates errors shared across goroutines.
func DescribeError(err error) string {
	if err == nil {
		return ""
	}
	builder, ok := err.(*errbuilder.ErrBuilder)
	if !ok {
		return err.Error()
	}
	message := strings.TrimSpace(builder.Msg)
	cause := errors.Unwrap(builder)
	if cause == nil {
		if message == "" {
			return "unknown error"
		}
		return message
	}
	detail := DescribeError(cause)
	if message == "" {
		return detail
	}
	if detail == "" || detail == message {
		return message
	}
	return message + ": " + detail
}
