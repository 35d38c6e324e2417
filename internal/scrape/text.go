package scrape

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/codefornorway/civic-scrapers/internal/textnorm"
	"github.com/codefornorway/civic-scrapers/pkg/geocode"
)

var (
	emailRe  = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)
	latLngRe = regexp.MustCompile(`([+-]?\b\d{1,2}\.\d{4,}),\s*([+-]?\b\d{1,3}\.\d{4,})\b`)
)

// visibleText returns the text of the selection with a space between every
// text node, so adjacent block elements do not run together. Script and
// style content is skipped.
func visibleText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			}
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return textnorm.Space(b.String())
}

// firstEmail returns the first email-shaped string in text, lowercased.
func firstEmail(text string) string {
	return strings.ToLower(emailRe.FindString(text))
}

// firstLatLng returns the first "lat, lng" pair in text.
func firstLatLng(text string) *geocode.Point {
	m := latLngRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	lat, err1 := strconv.ParseFloat(m[1], 64)
	lng, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil {
		return nil
	}
	return finitePoint(lat, lng)
}

// headingLevel returns 1-6 for h1-h6 and 0 for anything else.
func headingLevel(n *html.Node) int {
	if n == nil || n.Type != html.ElementNode {
		return 0
	}
	switch n.DataAtom {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	case atom.H5:
		return 5
	case atom.H6:
		return 6
	}
	return 0
}
