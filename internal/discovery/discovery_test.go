package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefornorway/civic-scrapers/internal/site"
)

// pageFetcher serves canned HTML by URL.
type pageFetcher map[string]string

func (f pageFetcher) Fetch(_ context.Context, url string) (string, error) {
	body, ok := f[url]
	if !ok {
		return "", errors.New("not found: " + url)
	}
	return body, nil
}

const base = "https://www.rodekors.no"

const indexHTML = `<html><body>
<nav><a href="/om-oss/">Om oss</a><a href="/lokalforeninger/">Alle</a></nav>
<ul>
  <li><a href="/lokalforeninger/agder/">Agder</a></li>
  <li><a href="/lokalforeninger/oslo">Oslo</a></li>
  <li><a href="https://www.rodekors.no/lokalforeninger/agder/?ref=menu">Agder igjen</a></li>
  <li><a href="/lokalforeninger/agder/kristiansand/">Kristiansand</a></li>
  <li><a href="https://example.org/lokalforeninger/vestland/">Annet nettsted</a></li>
</ul>
</body></html>`

const agderHTML = `<html><body>
<h1>Agder Røde Kors</h1>
<p><a href="/lokalforeninger/agder/om/">Om Agder</a></p>
<h2>Lokalforeninger i Agder</h2>
<ul>
  <li><a href="/lokalforeninger/agder/kristiansand/">Kristiansand</a></li>
  <li><a href="/lokalforeninger/agder/arendal">Arendal</a></li>
  <li><a href="/lokalforeninger/agder/kontakt/">Kontakt</a></li>
  <li><a href="/lokalforeninger/oslo/sentrum/">Feil region</a></li>
</ul>
<h3>Underoverskrift</h3>
<a href="/lokalforeninger/agder/grimstad/">Grimstad</a>
<h2>Nyheter</h2>
<a href="/lokalforeninger/agder/lillesand/">Lillesand (i nyheter)</a>
</body></html>`

const osloHTML = `<html><body>
<h1>Oslo Røde Kors</h1>
<div class="grid">
  <a href="/lokalforeninger/oslo/sentrum/">Sentrum</a>
  <a href="/lokalforeninger/oslo/nordstrand/">Nordstrand</a>
  <a href="/lokalforeninger/oslo/sentrum">Sentrum igjen</a>
  <a href="/lokalforeninger/oslo/nyheter/">Nyheter</a>
</div>
</body></html>`

func newTestDiscoverer(opts ...Option) *Discoverer {
	f := pageFetcher{
		base + "/lokalforeninger/":        indexHTML,
		base + "/lokalforeninger/agder/": agderHTML,
		base + "/lokalforeninger/oslo/":  osloHTML,
	}
	return New(f, site.RodeKors(), opts...)
}

func TestDiscoverRegions(t *testing.T) {
	t.Parallel()

	set, err := newTestDiscoverer().DiscoverRegions(context.Background())
	require.NoError(t, err)

	want := []string{
		base + "/lokalforeninger/agder/",
		base + "/lokalforeninger/oslo/",
	}
	if diff := cmp.Diff(want, set.URLs()); diff != "" {
		t.Errorf("regions mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscoverLocalities_HeadingSection(t *testing.T) {
	t.Parallel()

	set, err := newTestDiscoverer().DiscoverLocalities(context.Background(), base+"/lokalforeninger/agder/")
	require.NoError(t, err)

	// The h3 is lower than the h2 marker, so Grimstad is still inside the
	// section; Lillesand sits after the next h2.
	want := []string{
		base + "/lokalforeninger/agder/kristiansand/",
		base + "/lokalforeninger/agder/arendal/",
		base + "/lokalforeninger/agder/grimstad/",
	}
	if diff := cmp.Diff(want, set.URLs()); diff != "" {
		t.Errorf("localities mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscoverLocalities_FallbackToWholePage(t *testing.T) {
	t.Parallel()

	set, err := newTestDiscoverer().DiscoverLocalities(context.Background(), base+"/lokalforeninger/oslo/")
	require.NoError(t, err)

	want := []string{
		base + "/lokalforeninger/oslo/sentrum/",
		base + "/lokalforeninger/oslo/nordstrand/",
	}
	if diff := cmp.Diff(want, set.URLs()); diff != "" {
		t.Errorf("localities mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscoverLocalities_EmptySectionFallsBack(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<h2>Lokalforeninger i Vestland</h2>
<p>Kommer snart.</p>
<h2>Annet</h2>
<a href="/lokalforeninger/vestland/bergen/">Bergen</a>
</body></html>`
	f := pageFetcher{base + "/lokalforeninger/vestland/": html}
	d := New(f, site.RodeKors())

	set, err := d.DiscoverLocalities(context.Background(), base+"/lokalforeninger/vestland/")
	require.NoError(t, err)
	assert.Equal(t, []string{base + "/lokalforeninger/vestland/bergen/"}, set.URLs())
}

func TestDiscoverLocalities_Exclude(t *testing.T) {
	t.Parallel()

	d := newTestDiscoverer(WithExclude([]string{"/lokalforeninger/agder/arendal"}))
	set, err := d.DiscoverLocalities(context.Background(), base+"/lokalforeninger/agder/")
	require.NoError(t, err)
	assert.NotContains(t, set.URLs(), base+"/lokalforeninger/agder/arendal/")
	assert.Contains(t, set.URLs(), base+"/lokalforeninger/agder/kristiansand/")
}

func TestDiscover_FetchError(t *testing.T) {
	t.Parallel()

	d := New(pageFetcher{}, site.RodeKors())
	_, err := d.DiscoverRegions(context.Background())
	assert.Error(t, err)

	_, err = d.DiscoverLocalities(context.Background(), base+"/lokalforeninger/agder/")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "agder")
}

func TestStopSelector(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "h1", stopSelector("h1"))
	assert.Equal(t, "h1, h2", stopSelector("h2"))
	assert.Equal(t, "h1, h2, h3", stopSelector("h3"))
	assert.Equal(t, "h1, h2, h3, h4, h5, h6", stopSelector("div"))
}

func TestLinkSet(t *testing.T) {
	t.Parallel()

	s := NewLinkSet()
	assert.True(t, s.Add("a"))
	assert.True(t, s.Add("b"))
	assert.False(t, s.Add("a"))

	other := NewLinkSet()
	other.Add("c")
	other.Add("b")
	s.Merge(other)

	assert.Equal(t, []string{"a", "b", "c"}, s.URLs())
	assert.Equal(t, 3, s.Len())

	urls := s.URLs()
	urls[0] = "mutated"
	assert.Equal(t, "a", s.URLs()[0])
}
