// Package redact strips sensitive information from strings before they are
// logged or returned in error responses: credentials embedded in broker and
// database URLs, bearer tokens, storage locations, file paths, email
// addresses and SQL text.
package redact

import "regexp"

// Redaction placeholders.
const (
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedLocationPlaceholder   = "[REDACTED_LOCATION]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
	RedactedEmailPlaceholder      = "[REDACTED_EMAIL]"
	RedactedSQLPlaceholder        = "[REDACTED_SQL]"
	StackTracePlaceholder         = "[STACK_TRACE_REDACTED]"
)

type rule struct {
	pattern     *regexp.Regexp
	placeholder string
}

// Rules run in order. Earlier rules consume text that later, broader
// rules would otherwise match partially.
var rules = []rule{
	// everything from a panic or goroutine dump onwards
	{regexp.MustCompile(`(?s)(?:panic:|goroutine \d+ \[).*`), StackTracePlaceholder},
	// scheme://user:pass@ for postgres, redis, kafka and friends
	{regexp.MustCompile(`(?i)\b[a-z][a-z0-9+.-]*://[^/\s:@]*:[^@\s]+@`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`), RedactedJWTPlaceholder},
	{regexp.MustCompile(`(?i)\b(?:password|passwd|pwd|secret)\s*[=:]\s*\S+`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`\bs3://\S+`), RedactedLocationPlaceholder},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), RedactedEmailPlaceholder},
	// statements only; keywords are matched upper case so prose like
	// "failed to update status" survives
	{regexp.MustCompile(`\b(?:SELECT|INSERT INTO|UPDATE|DELETE FROM)\s[^;]*`), RedactedSQLPlaceholder},
	{regexp.MustCompile(`(?:/[\w.-]+){2,}`), RedactedPathPlaceholder},
}

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.placeholder)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}
