package crawl

import (
	"net/url"
	"strings"
)

// hrefKind classifies a raw href attribute value found on a listing page.
type hrefKind int

const (
	hrefRejected hrefKind = iota
	hrefSubdirectory
	hrefFile
)

// classifyHref implements the rejection rules of the crawler step 3:
// query-only links, absolute-scheme links, root-absolute paths,
// parent-relative paths, and the self-link are all rejected; everything
// else is a subdirectory if it ends in "/", otherwise a file leaf.
func classifyHref(href string) hrefKind {
	switch {
	case href == "":
		return hrefRejected
	case strings.HasPrefix(href, "?"):
		return hrefRejected
	case strings.HasPrefix(href, "/"):
		return hrefRejected
	case strings.Contains(href, ".."):
		return hrefRejected
	case href == "./":
		return hrefRejected
	case hasScheme(href):
		return hrefRejected
	}
	if strings.HasSuffix(href, "/") {
		return hrefSubdirectory
	}
	return hrefFile
}

// hasScheme reports whether href begins with "<scheme>:" (e.g. "mailto:",
// "javascript:"), which net/url would otherwise happily resolve.
func hasScheme(href string) bool {
	idx := strings.IndexByte(href, ':')
	if idx <= 0 {
		return false
	}
	for _, r := range href[:idx] {
		if !isSchemeChar(r) {
			return false
		}
	}
	return true
}

func isSchemeChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '+' || r == '-' || r == '.'
}

// resolveHref resolves href against the page it was found on.
func resolveHref(pageURL, href string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// deriveGroupPlatform derives group and platform from the URL path segments
// below the archive root: segment[0] is the group, segment[1] is the
// platform, falling back to the group when there is no second segment.
func deriveGroupPlatform(baseURL, pageURL string) (group, platform string) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", ""
	}
	page, err := url.Parse(pageURL)
	if err != nil {
		return "", ""
	}
	rel := strings.TrimPrefix(page.Path, base.Path)
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return "", ""
	}
	segments := strings.Split(rel, "/")
	group = segments[0]
	platform = group
	if len(segments) > 1 && segments[1] != "" {
		platform = segments[1]
	}
	return group, platform
}
