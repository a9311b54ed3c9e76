package collector

import "regexp"

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9-]+`)

// SanitizeDomain makes a domain safe to use as a file name.
func SanitizeDomain(domain string) string {
	return unsafeNameChars.ReplaceAllString(domain, "_")
}
