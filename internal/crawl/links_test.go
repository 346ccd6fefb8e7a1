package crawl

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestNormalizeLinkResolvesRelativeAndDropsExternal(t *testing.T) {
	base := mustParse(t, "https://site.example/docs/a")

	link, ok := normalizeLink(base, "/docs/b")
	assert.True(t, ok)
	assert.Equal(t, "https://site.example/docs/b", link)

	link, ok = normalizeLink(base, "https://site.example/docs/c#section")
	assert.True(t, ok)
	assert.Equal(t, "https://site.example/docs/c", link, "fragment must be stripped")

	_, ok = normalizeLink(base, "https://other.example/x")
	assert.False(t, ok, "external origin must be dropped")

	_, ok = normalizeLink(base, "mailto:a@b.com")
	assert.False(t, ok)
}

func TestExtractLinksFromMarkdown(t *testing.T) {
	base := mustParse(t, "https://site.example/x/y")
	md := "See [doc](https://site.example/x/y/z) and [ext](https://other.example/q)."
	links := extractLinksFromMarkdown(base, md)
	assert.Equal(t, []string{"https://site.example/x/y/z"}, links)
}

func TestMatchesPatternsIncludeThenExclude(t *testing.T) {
	assert.True(t, matchesPatterns("https://s/docs/guide", []string{"/docs/*"}, nil))
	assert.False(t, matchesPatterns("https://s/blog/post", []string{"/docs/*"}, nil))
	assert.False(t, matchesPatterns("https://s/docs/internal/x", nil, []string{"/docs/internal/*"}))
}

func TestDedupLinksPreservesOrder(t *testing.T) {
	out := dedupLinks([]string{"a", "b", "a", "c", "b"})
	assert.Equal(t, []string{"a", "b", "c"}, out)
}
