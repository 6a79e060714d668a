package logger

import (
	"log/slog"
	"strings"

	"github.com/yndnr/chunkmeta-go/internal/core/domain"
)

// Sensitive key patterns that should be redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"passphrase",
	"secret",
	"credential",
	"signature",
	"log_key",
	"cipher_key",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive masks delegation token signatures and fully redacts
// values whose key name suggests secret material.
func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		strVal := a.Value.String()
		if masked, ok := maskToken(strVal); ok {
			return slog.String(a.Key, masked)
		}
		if strVal != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	case slog.KindAny:
		if tok, ok := a.Value.Any().(domain.DelegationToken); ok {
			masked, _ := maskToken(tok.String())
			return slog.String(a.Key, masked)
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}
	return a
}

// maskToken replaces the signature of a delegation token in text form,
// keeping its identifying fields and the first and last 3 signature
// digits.
func maskToken(value string) (string, bool) {
	i := strings.LastIndexByte(value, '.')
	if i < 0 || strings.Count(value, ".") != 5 {
		return "", false
	}
	if _, err := domain.ParseDelegationToken(value); err != nil {
		return "", false
	}
	return value[:i+1] + maskValue(value[i+1:]), true
}

// maskValue keeps the first and last 3 characters of a long value.
func maskValue(value string) string {
	if len(value) <= 6 {
		return "***"
	}
	return value[:3] + "..." + value[len(value)-3:]
}

// RedactString manually redacts a string value.
// Use this when you need to redact a value before logging.
func RedactString(value string) string {
	if masked, ok := maskToken(value); ok {
		return masked
	}
	return value
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}
