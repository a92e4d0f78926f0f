// Package redact strips sensitive values from strings before they are logged
// or returned in error responses: connection strings, credentials, key
// material, push endpoint paths and file paths.
package redact

import (
	"net/url"
	"regexp"
)

// Redaction placeholders.
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedSQLPlaceholder        = "[REDACTED_SQL]"
)

type rule struct {
	re          *regexp.Regexp
	placeholder string
}

// Rules run in order; credentials go before paths so a DSN is not half-matched.
var rules = []rule{
	{
		regexp.MustCompile(`(?i)(postgres|postgresql|pgx|sqlite|file)://[^@\s]+@`),
		RedactedCredentialPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`),
		RedactedCredentialPlaceholder,
	},
	{
		regexp.MustCompile(
			`(?i)(vapid[_-]?private[_-]?key|private[_-]?key|p256dh|auth|secret|token)(['"\s:=]+)[A-Za-z0-9_\-.~+/=]{8,}`,
		),
		RedactedKeyPlaceholder,
	},
	{
		regexp.MustCompile(`https?://[^\s/]+(/[^\s"']+)`),
		"",
	},
	{
		regexp.MustCompile(`(/[\w.-]+){2,}`),
		RedactedPathPlaceholder,
	},
	{
		regexp.MustCompile(
			`(?i)(SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP)[\s\w,*()]+(?:FROM|INTO|SET|TABLE|INDEX)(?:[\s\w,*()='"?]+)?`,
		),
		RedactedSQLPlaceholder,
	},
	{
		regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`),
		"[STACK_TRACE_REDACTED]",
	},
}

var urlPathRule = rules[3].re

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		if r.re == urlPathRule {
			result = r.re.ReplaceAllStringFunc(result, Endpoint)
			continue
		}
		result = r.re.ReplaceAllString(result, r.placeholder)
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

// Endpoint reduces a push endpoint to scheme and host. The path of a push
// endpoint is a bearer capability for the subscription.
func Endpoint(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return RedactionPlaceholder
	}
	return u.Scheme + "://" + u.Host + "/" + RedactionPlaceholder
}

// Key shows only the first four characters of key material.
func Key(key string) string {
	if len(key) <= 4 {
		return RedactedKeyPlaceholder
	}
	return key[:4] + "…" + RedactedKeyPlaceholder
}
