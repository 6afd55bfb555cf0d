package observability

import "strings"

// Length caps for request attributes that end up in logs and spans. Routes
// are chi patterns, not raw URLs, so the longest legitimate value is short;
// anything beyond these caps is attacker- or bug-shaped and gets truncated.
const (
	maxRouteLen  = 120
	maxMethodLen = 8
	maxActorLen  = 64
	maxPeerLen   = 64
)

// cleanForLog strips every control character and truncates to limit runes.
// Log lines are single-line JSON, so newlines and tabs are dropped along
// with the rest rather than preserved.
func cleanForLog(value string, limit int) string {
	var b strings.Builder
	b.Grow(len(value))
	n := 0
	for _, r := range value {
		if r < 0x20 || r == 0x7f {
			continue
		}
		if n == limit {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// SanitizeRoute caps a chi route pattern for log and span attributes.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return cleanForLog(route, maxRouteLen)
}

// SanitizeMethod caps an HTTP method name.
func SanitizeMethod(method string) string {
	return cleanForLog(method, maxMethodLen)
}

// SanitizeUserID caps account identifiers before they reach log output.
func SanitizeUserID(uid string) string {
	return cleanForLog(uid, maxActorLen)
}
