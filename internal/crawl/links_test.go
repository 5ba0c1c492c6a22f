package crawl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyHref(t *testing.T) {
	t.Parallel()

	cases := map[string]hrefKind{
		"subdir/":               hrefSubdirectory,
		"Game (USA).nes":        hrefFile,
		"?C=N;O=D":              hrefRejected,
		"/root/absolute":        hrefRejected,
		"../parent":             hrefRejected,
		"./":                    hrefRejected,
		"https://other.example": hrefRejected,
		"mailto:a@example.com":  hrefRejected,
	}
	for href, want := range cases {
		assert.Equal(t, want, classifyHref(href), "href=%q", href)
	}
}

func TestResolveHrefAgainstCurrentURL(t *testing.T) {
	t.Parallel()

	got, err := resolveHref("https://archive.example/nes/", "Super%20Mario.nes")
	assert.NoError(t, err)
	assert.Equal(t, "https://archive.example/nes/Super%20Mario.nes", got)
}

func TestDeriveGroupPlatformFromPathSegments(t *testing.T) {
	t.Parallel()

	group, platform := deriveGroupPlatform("https://archive.example/roms/", "https://archive.example/roms/no-intro/nes/")
	assert.Equal(t, "no-intro", group)
	assert.Equal(t, "nes", platform)
}

func TestDeriveGroupPlatformFallsBackToGroup(t *testing.T) {
	t.Parallel()

	group, platform := deriveGroupPlatform("https://archive.example/roms/", "https://archive.example/roms/no-intro/")
	assert.Equal(t, "no-intro", group)
	assert.Equal(t, "no-intro", platform)
}
