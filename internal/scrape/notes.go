package scrape

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var (
	notesPolicy = newNotesPolicy()

	whitespaceRe = regexp.MustCompile(`\s+`)
	// Whitespace around block-level tags is not significant.
	blockGapRe = regexp.MustCompile(`\s*(</?(?:p|div|ul|ol|li|h[1-6]|table|thead|tbody|tr|td|th|br|hr|section|article|blockquote|dl|dt|dd|figure|figcaption)\b[^>]*>)\s*`)
)

func newNotesPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(false)
	return p
}

// notesSection returns the HTML that follows the welcome heading up to the
// next heading of the same or a higher level, sanitized and
// whitespace-collapsed. It returns "" when the page has no welcome heading
// or the section is empty.
func notesSection(p *page) string {
	heading := p.doc.Find(headingSelector).FilterFunction(func(_ int, h *goquery.Selection) bool {
		return p.site.IsWelcomeHeading(h.Text())
	}).First()
	if heading.Length() == 0 {
		return ""
	}

	start := heading.Nodes[0]
	level := headingLevel(start)

	var b strings.Builder
	for n := start.NextSibling; n != nil; n = n.NextSibling {
		if l := headingLevel(n); l > 0 && l <= level {
			break
		}
		if err := html.Render(&b, n); err != nil {
			return ""
		}
	}
	return minifyHTML(notesPolicy.Sanitize(b.String()))
}

// minifyHTML collapses whitespace runs and drops whitespace next to
// block-level tags.
func minifyHTML(s string) string {
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = blockGapRe.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}
