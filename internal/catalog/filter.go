package catalog

import "strings"

// nonGameTerms is the static vocabulary of lowercased terms that mark a
// filename as ineligible for enrichment (§4.2).
var nonGameTerms = []string{
	"manual", "update", "bios", "soundtrack", "bin", "cue", "txt",
	"proto", "sample", "beta", "demo", "advert", "kiosk", "video",
}

// Eligible reports whether filename is a candidate for enrichment. A
// filename is ineligible when it ends with ".<term>", contains "(<term>)"
// or "[<term>]", or ends with " <term>", for any term in the vocabulary.
func Eligible(filename string) bool {
	lower := strings.ToLower(filename)
	for _, term := range nonGameTerms {
		if strings.HasSuffix(lower, "."+term) {
			return false
		}
		if strings.Contains(lower, "("+term+")") || strings.Contains(lower, "["+term+"]") {
			return false
		}
		if strings.HasSuffix(lower, " "+term) {
			return false
		}
	}
	return true
}
