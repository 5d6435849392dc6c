// Package security sanitises operator-supplied strings before they reach
// the filesystem.
package security

import "strings"

const maxFilenameLen = 64

// SanitizeFilename reduces s to ASCII letters, digits, dot, underscore and
// dash so it can be used as part of a file name. Runs of other characters
// become a single underscore, leading and trailing dots and underscores are
// dropped, and the result is capped in length. An empty result is "run".
func SanitizeFilename(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '.' || r == '_' || r == '-'
		if !ok {
			pendingSep = true
			continue
		}
		if pendingSep && b.Len() > 0 {
			b.WriteByte('_')
		}
		pendingSep = false
		b.WriteRune(r)
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "run"
	}
	return out
}
