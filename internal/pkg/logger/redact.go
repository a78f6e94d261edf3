package logger

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// redactValue masks recipient addresses before they reach the log stream.
// Fields whose key mentions email/recipient are masked outright; other
// values are scanned for embedded addresses.
func redactValue(key, val string) string {
	k := strings.ToLower(key)
	if strings.Contains(k, "email") || strings.Contains(k, "recipient") {
		return RedactEmail(val)
	}
	return emailPattern.ReplaceAllStringFunc(val, RedactEmail)
}

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" -> "jo***@example.com". Local parts of two or fewer
// characters are fully masked.
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	local := parts[0]
	if len(local) > 2 {
		return local[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}
