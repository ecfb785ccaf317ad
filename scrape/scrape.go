// Package scrape fetches a web page and extracts its labeled links, the
// data source behind table_scrape. Labels are the visible anchor text;
// relative hrefs are resolved against the final request URL.
package scrape

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ericchiang/css"
	"golang.org/x/net/html"
)

var client = &http.Client{Timeout: 15 * time.Second}

var anchors = css.MustParse("a[href]")

// Links returns a label-to-URL table for every anchor on the page.
// Anchors without visible text are dropped; duplicate labels keep the
// first link seen.
func Links(pageURL string) (map[string]string, error) {
	resp, err := client.Get(pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: %s", pageURL, resp.Status)
	}
	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", pageURL, err)
	}
	base := resp.Request.URL
	return extract(doc, base), nil
}

func extract(doc *html.Node, base *url.URL) map[string]string {
	links := make(map[string]string)
	for _, node := range anchors.Select(doc) {
		label := strings.Join(strings.Fields(nodeText(node)), " ")
		if label == "" {
			continue
		}
		href := attrValue(node, "href")
		if href == "" || strings.HasPrefix(href, "#") {
			continue
		}
		if base != nil {
			if ref, err := url.Parse(href); err == nil {
				href = base.ResolveReference(ref).String()
			}
		}
		if _, seen := links[label]; !seen {
			links[label] = href
		}
	}
	return links
}

func attrValue(node *html.Node, name string) string {
	for _, a := range node.Attr {
		if a.Key == name {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func nodeText(node *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return b.String()
}
