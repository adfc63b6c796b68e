package ingest

import "strings"

// NormalizeEmail canonicalizes an email address for joining across tables:
// lowercase, trimmed, with any +alias segment before the @ stripped
// (user+test@x.com -> user@x.com). Every join point in the engine must use
// this same rule or cross-table joins silently fail.
func NormalizeEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	at := strings.LastIndex(s, "@")
	if at <= 0 {
		return s
	}
	local, domain := s[:at], s[at:]
	if plus := strings.Index(local, "+"); plus >= 0 {
		local = local[:plus]
	}
	return local + domain
}
