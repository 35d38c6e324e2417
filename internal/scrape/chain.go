package scrape

// strategy reads one field from a page; an empty result means "try the next
// one".
type strategy func(p *page) string

// firstOf returns the first non-empty strategy result.
func firstOf(p *page, strategies ...strategy) string {
	for _, s := range strategies {
		if v := s(p); v != "" {
			return v
		}
	}
	return ""
}
