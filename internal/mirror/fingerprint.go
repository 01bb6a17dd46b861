package mirror

import (
	"strings"
	"unicode"
)

// fingerprintMax bounds fingerprint length. Truncation keeps comparison cheap
// and ignores trailing boilerplate (signatures, hashtags) that differs
// between reposts of the same order.
const fingerprintMax = 100

// Fingerprint reduces text to the canonical duplicate-detection key:
// lower-cased, Unicode letters and digits only, truncated to a fixed length.
// Two independently computed fingerprints of equivalent text compare equal.
func Fingerprint(text string) string {
	var b strings.Builder
	n := 0
	for _, r := range strings.ToLower(text) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		b.WriteRune(r)
		n++
		if n == fingerprintMax {
			break
		}
	}
	return b.String()
}
