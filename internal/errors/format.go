package errors

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// FormatForCLI formats an error for CLI output.
// Uses a concise format suitable for terminal display: the failure cause
// first, then the remedying action when one is known.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	ke, ok := err.(*KBError)
	if !ok {
		ke = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Error: %s\n", ke.Message))

	if ke.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", ke.Suggestion))
	}

	sb.WriteString(fmt.Sprintf("  Code: %s\n", ke.Code))

	return sb.String()
}

// FormatForLog formats an error for structured logging.
// Returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	ke, ok := err.(*KBError)
	if !ok {
		return map[string]any{
			"error": err.Error(),
		}
	}

	result := map[string]any{
		"error_code": ke.Code,
		"message":    ke.Message,
		"category":   string(ke.Category),
		"severity":   string(ke.Severity),
	}

	if ke.Cause != nil {
		result["cause"] = ke.Cause.Error()
	}

	if ke.Suggestion != "" {
		result["suggestion"] = ke.Suggestion
	}

	for k, v := range ke.Details {
		result["detail_"+k] = v
	}

	return result
}

// ToLogAttrs converts an error to slog attributes, keyed as in
// FormatForLog. Keys are sorted so log lines stay stable.
func ToLogAttrs(err error) []any {
	fields := FormatForLog(err)
	if fields == nil {
		return nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]any, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	return attrs
}
