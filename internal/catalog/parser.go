package catalog

import "strings"

// ParsedName is the output of Parse: everything C1 can recover from a raw
// filename without any I/O.
type ParsedName struct {
	BaseName string
	Tags     []string
	Region   string
}

// regionVocabulary is the fixed set of lowercased region names classifying a
// bracketed tag as a region tag (§4.1).
var regionVocabulary = map[string]struct{}{
	"usa": {}, "japan": {}, "europe": {}, "world": {}, "asia": {},
	"australia": {}, "brazil": {}, "canada": {}, "china": {}, "denmark": {},
	"finland": {}, "france": {}, "germany": {}, "greece": {}, "hong kong": {},
	"israel": {}, "italy": {}, "korea": {}, "netherlands": {}, "norway": {},
	"poland": {}, "portugal": {}, "russia": {}, "spain": {}, "sweden": {},
	"taiwan": {}, "uk": {}, "united kingdom": {},
}

// Parse extracts base title, bracketed tags, and region classification from
// a raw filename. It is pure and stateless: no I/O, no shared state.
func Parse(filename string) ParsedName {
	stripped := stripExtension(filename)
	base, tagSpan := splitBase(stripped)
	tags := extractTags(tagSpan)
	return ParsedName{
		BaseName: strings.TrimSpace(base),
		Tags:     tags,
		Region:   classifyRegion(tags),
	}
}

func stripExtension(name string) string {
	if idx := strings.LastIndex(name, "."); idx != -1 {
		return name[:idx]
	}
	return name
}

// splitBase returns the portion preceding the first '(' or '[' and the
// remainder starting at that character, so extractTags only ever scans the
// tag region of the filename.
func splitBase(name string) (base string, tagSpan string) {
	idx := strings.IndexAny(name, "([")
	if idx == -1 {
		return name, ""
	}
	return name[:idx], name[idx:]
}

// extractTags walks tagSpan once, pulling out every substring enclosed by a
// matching '(' ')' or '[' ']' pair, non-greedy and in order. Unclosed
// brackets terminate the scan; whatever was already recovered is kept.
func extractTags(tagSpan string) []string {
	var tags []string
	i := 0
	for i < len(tagSpan) {
		switch tagSpan[i] {
		case '(':
			end := strings.IndexByte(tagSpan[i+1:], ')')
			if end == -1 {
				return tags
			}
			tags = append(tags, tagSpan[i+1:i+1+end])
			i += end + 2
		case '[':
			end := strings.IndexByte(tagSpan[i+1:], ']')
			if end == -1 {
				return tags
			}
			tags = append(tags, tagSpan[i+1:i+1+end])
			i += end + 2
		default:
			i++
		}
	}
	return tags
}

// classifyRegion returns the first tag whose comma/plus-separated, lowercased
// pieces are at least half drawn from regionVocabulary. Only the first match
// wins (§4.1); later region-shaped tags never overwrite it.
func classifyRegion(tags []string) string {
	for _, tag := range tags {
		pieces := strings.FieldsFunc(tag, func(r rune) bool { return r == ',' || r == '+' })
		if len(pieces) == 0 {
			continue
		}
		matches := 0
		for _, p := range pieces {
			p = strings.ToLower(strings.TrimSpace(p))
			if _, ok := regionVocabulary[p]; ok {
				matches++
			}
		}
		if matches*2 >= len(pieces) {
			return tag
		}
	}
	return ""
}
