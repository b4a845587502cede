package journey

import "strings"

// HostExcluded reports whether host contains any non-empty entry of
// excludedDomains. Both sides are compared in lower case. Matching is by
// substring, so "bank.com" also matches "notabank.com".
func HostExcluded(host string, excludedDomains []string) bool {
	host = strings.ToLower(host)
	for _, d := range excludedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" && strings.Contains(host, d) {
			return true
		}
	}
	return false
}
