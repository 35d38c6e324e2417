package scrape

import (
	"net/url"

	"github.com/codefornorway/civic-scrapers/internal/textnorm"
)

func leadParagraph(p *page) string {
	return textnorm.Space(p.doc.Find(p.site.Selectors().Lead).First().Text())
}

func metaDescription(p *page) string {
	v, _ := p.doc.Find(p.site.Selectors().MetaDescription).First().Attr("content")
	return textnorm.Space(v)
}

func paragraphAfterHeading(p *page) string {
	return textnorm.Space(p.h1.NextAllFiltered("p").First().Text())
}

func paragraphInHeadingSection(p *page) string {
	return textnorm.Space(p.h1.Parent().NextAll().Find("p").First().Text())
}

func ogImage(p *page) string {
	v, _ := p.doc.Find(p.site.Selectors().OGImage).First().Attr("content")
	return p.absolute(v)
}

func firstImage(p *page) string {
	v, _ := p.doc.Find("img[src]").First().Attr("src")
	return p.absolute(v)
}

// definitionListAddress reads <dt>label</dt><dd>value</dd> pairs. When
// several labels match, the last non-empty value wins.
func definitionListAddress(p *page) string {
	var address string
	for _, dt := range p.doc.Find("dt").EachIter() {
		if !p.site.IsAddressLabel(dt.Text()) {
			continue
		}
		if v := visibleText(dt.NextFiltered("dd")); v != "" {
			address = v
		}
	}
	return address
}

func markerAddress(p *page) string {
	return p.mark.Address
}

func textAddress(p *page) string {
	if p.addr == nil {
		return ""
	}
	m := p.addr.FindStringSubmatch(visibleText(p.doc.Find(p.site.Selectors().Body)))
	if m == nil {
		return ""
	}
	return textnorm.Space(m[1])
}

func emailNearHeading(p *page) string {
	return firstEmail(visibleText(p.h1.NextUntil("h2")))
}

func emailInBody(p *page) string {
	if e := firstEmail(visibleText(p.doc.Find(p.site.Selectors().Body))); e != "" {
		return e
	}
	// mailto links are often the only place an address appears.
	for _, a := range p.doc.Find(`a[href^="mailto:"]`).EachIter() {
		href, _ := a.Attr("href")
		if e := firstEmail(href); e != "" {
			return e
		}
	}
	return ""
}

// absolute resolves ref against the page URL.
func (p *page) absolute(ref string) string {
	ref = textnorm.Space(ref)
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return p.url.ResolveReference(r).String()
}
