package discovery

// LinkSet is an insertion-ordered set of canonical URLs.
type LinkSet struct {
	seen map[string]struct{}
	urls []string
}

// NewLinkSet creates an empty set.
func NewLinkSet() *LinkSet {
	return &LinkSet{seen: make(map[string]struct{})}
}

// Add inserts u and reports whether it was new.
func (s *LinkSet) Add(u string) bool {
	if _, ok := s.seen[u]; ok {
		return false
	}
	s.seen[u] = struct{}{}
	s.urls = append(s.urls, u)
	return true
}

// Merge adds every URL of other.
func (s *LinkSet) Merge(other *LinkSet) {
	for _, u := range other.urls {
		s.Add(u)
	}
}

// Len returns the number of URLs.
func (s *LinkSet) Len() int { return len(s.urls) }

// URLs returns a copy of the URLs in insertion order.
func (s *LinkSet) URLs() []string {
	out := make([]string, len(s.urls))
	copy(out, s.urls)
	return out
}
