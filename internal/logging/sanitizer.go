package logging

import (
	"regexp"
	"strings"
)

const redactedPlaceholder = "[REDACTED]"

// sensitiveKeyParts mark environment variable names whose values never leave
// the process unredacted.
var sensitiveKeyParts = []string{
	"TOKEN", "KEY", "SECRET", "PASSWORD", "PASSWD", "CREDENTIAL",
	"AUTH", "PRIVATE", "COOKIE", "SESSION",
}

// Sanitizer redacts sensitive information from log messages, report text
// and captured environments.
type Sanitizer struct {
	patterns []*regexp.Regexp
	redacted string
}

// NewSanitizer creates a sanitizer with default patterns.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		patterns: defaultPatterns(),
		redacted: redactedPlaceholder,
	}
}

func defaultPatterns() []*regexp.Regexp {
	patterns := []string{
		// AWS Access Key
		`AKIA[0-9A-Z]{16}`,
		// GitHub tokens
		`gh[pousr]_[A-Za-z0-9]{36}`,
		// Slack tokens
		`xox[baprs]-[0-9a-zA-Z-]{10,}`,
		// Private key blocks
		`-----BEGIN [A-Z ]*PRIVATE KEY-----`,
		// Generic Bearer tokens
		`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`,
		// URL credentials
		`://[^/\s:@]+:[^/\s@]+@`,
		// Generic key=value secrets
		`(?i)(api[_-]?key|secret|token)["'\s:=]+[a-zA-Z0-9_-]{20,}`,
		`(?i)password["'\s:=]+[^\s"']{8,}`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

// Sanitize redacts sensitive information from a string.
func (s *Sanitizer) Sanitize(input string) string {
	result := input
	for _, pattern := range s.patterns {
		result = pattern.ReplaceAllString(result, s.redacted)
	}
	return result
}

// RedactEnv converts KEY=VALUE pairs into a map, replacing the value of any
// sensitive-looking key and sanitizing the rest.
func (s *Sanitizer) RedactEnv(environ []string) map[string]string {
	result := make(map[string]string, len(environ))
	for _, env := range environ {
		key, value, ok := strings.Cut(env, "=")
		if !ok || key == "" {
			continue
		}
		if IsSensitiveKey(key) {
			result[key] = s.redacted
			continue
		}
		result[key] = s.Sanitize(value)
	}
	return result
}

// IsSensitiveKey reports whether an environment variable name looks secret.
func IsSensitiveKey(key string) bool {
	upper := strings.ToUpper(key)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(upper, part) {
			return true
		}
	}
	return false
}

// AddPattern adds a custom pattern.
func (s *Sanitizer) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	s.patterns = append(s.patterns, re)
	return nil
}

// SetRedactedPlaceholder sets the placeholder text for redacted content.
func (s *Sanitizer) SetRedactedPlaceholder(placeholder string) {
	s.redacted = placeholder
}
