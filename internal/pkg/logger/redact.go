package logger

import (
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// redactValue masks PII in a field value based on its key name and content.
func redactValue(key, val string) string {
	lower := strings.ToLower(key)
	if strings.Contains(lower, "email") || strings.Contains(lower, "subscriber") {
		return RedactEmail(val)
	}
	if lower == "ip" || strings.Contains(lower, "ip_address") || strings.Contains(lower, "remote_addr") {
		return RedactIP(val)
	}
	// Mask any embedded emails in generic fields
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactIP masks the host portion of an IP address.
// "203.0.113.7" → "203.0.x.x"; IPv6 and malformed values are fully masked.
func RedactIP(ip string) string {
	octets := strings.Split(ip, ".")
	if len(octets) != 4 {
		return "x:x:x"
	}
	return octets[0] + "." + octets[1] + ".x.x"
}
