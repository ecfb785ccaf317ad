package scrape

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const page = `<html><body>
<a href="/contact">Contact  Us</a>
<a href="https://other.example/docs">Docs</a>
<a href="#top">Back to top</a>
<a href="/empty"><img src="x.png"></a>
<a href="/dup">Contact Us</a>
</body></html>`

func TestExtract(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(page))
	require.NoError(t, err)
	base, _ := url.Parse("https://example.com/about")

	links := extract(doc, base)
	assert.Equal(t, map[string]string{
		"Contact Us": "https://example.com/contact",
		"Docs":       "https://other.example/docs",
	}, links)
}

func TestExtractNilBaseKeepsRelative(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(`<a href="/a">A</a>`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "/a"}, extract(doc, nil))
}
