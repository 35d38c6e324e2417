package site

import (
	"net/url"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/codefornorway/civic-scrapers/internal/textnorm"
)

// Profile is a data-driven Site. Profiles can be declared in YAML.
type Profile struct {
	Key              string    `yaml:"name"`
	Org              string    `yaml:"organization"`
	BaseURL          string    `yaml:"base_url"`
	Root             string    `yaml:"root"`
	Output           string    `yaml:"output"`
	DenySlugs        []string  `yaml:"deny_slugs"`
	LocalitiesMarker string    `yaml:"localities_marker"`
	WelcomeMarker    string    `yaml:"welcome_marker"`
	Labels           []string  `yaml:"address_labels"`
	Sel              Selectors `yaml:"selectors"`

	base *url.URL
	deny map[string]bool
}

var _ Site = (*Profile)(nil)

// DefaultSelectors returns the selectors used when a profile leaves them empty.
func DefaultSelectors() Selectors {
	return Selectors{
		Name:            "h1",
		Lead:            ".lead p",
		MetaDescription: `meta[name="description"]`,
		Marker:          "._jsMap[data-marker], .googleMap[data-marker], [data-marker]",
		MarkerAttr:      "data-marker",
		OGImage:         `meta[property="og:image"]`,
		Body:            "body",
	}
}

// Init validates the profile and fills defaults. It must be called before
// the profile is used; Registry.Register does so.
func (p *Profile) Init() error {
	if p.Key == "" {
		return eris.New("site: profile name is required")
	}
	if p.Root == "" {
		return eris.Errorf("site: profile %q: root is required", p.Key)
	}
	base, err := url.Parse(p.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return eris.Errorf("site: profile %q: invalid base_url %q", p.Key, p.BaseURL)
	}
	p.base = base
	p.Root = strings.Trim(p.Root, "/")
	if p.Org == "" {
		p.Org = p.Key
	}
	if p.Output == "" {
		p.Output = p.Key + "-local"
	}

	def := DefaultSelectors()
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&p.Sel.Name, def.Name)
	fill(&p.Sel.Lead, def.Lead)
	fill(&p.Sel.MetaDescription, def.MetaDescription)
	fill(&p.Sel.Marker, def.Marker)
	fill(&p.Sel.MarkerAttr, def.MarkerAttr)
	fill(&p.Sel.OGImage, def.OGImage)
	fill(&p.Sel.Body, def.Body)

	p.deny = make(map[string]bool, len(p.DenySlugs))
	for _, s := range p.DenySlugs {
		p.deny[textnorm.Fold(s)] = true
	}
	return nil
}

// Name implements Site.
func (p *Profile) Name() string { return p.Key }

// Organization implements Site.
func (p *Profile) Organization() string { return p.Org }

// OutputName implements Site.
func (p *Profile) OutputName() string { return p.Output }

// Selectors implements Site.
func (p *Profile) Selectors() Selectors { return p.Sel }

// AddressLabels implements Site.
func (p *Profile) AddressLabels() []string { return slices.Clone(p.Labels) }

// IndexURL implements Site.
func (p *Profile) IndexURL() string {
	u := *p.base
	u.Path = "/" + p.Root + "/"
	u.RawQuery, u.Fragment = "", ""
	return u.String()
}

// RegionURL implements Site.
func (p *Profile) RegionURL(region string) string {
	return p.IndexURL() + strings.Trim(region, "/") + "/"
}

// Canonical implements Site. Links to other hosts or non-HTTP schemes are
// rejected.
func (p *Profile) Canonical(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	u := p.base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if !strings.EqualFold(u.Host, p.base.Host) {
		return "", false
	}
	u.RawQuery, u.Fragment, u.RawFragment = "", "", ""
	u.Path = strings.TrimRight(u.Path, "/") + "/"
	u.RawPath = ""
	return u.String(), true
}

// ParsePath implements Site.
func (p *Profile) ParsePath(rawURL string) Path {
	ref, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return Path{}
	}
	u := p.base.ResolveReference(ref)

	var parts []string
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	i := slices.Index(parts, p.Root)
	if i < 0 {
		return Path{}
	}
	rest := parts[i+1:]
	out := Path{Depth: len(rest)}
	if len(rest) > 0 {
		out.Region = rest[0]
	}
	if len(rest) > 1 {
		out.Locality = rest[1]
	}
	return out
}

// IsRegionLink implements Site.
func (p *Profile) IsRegionLink(href string) bool {
	abs, ok := p.Canonical(href)
	if !ok {
		return false
	}
	path := p.ParsePath(abs)
	return path.Depth == 1 && path.Region != ""
}

// IsLocalityLink implements Site.
func (p *Profile) IsLocalityLink(href, region string) bool {
	abs, ok := p.Canonical(href)
	if !ok {
		return false
	}
	path := p.ParsePath(abs)
	if path.Depth != 2 || path.Region == "" || path.Locality == "" {
		return false
	}
	if region != "" && path.Region != region {
		return false
	}
	return !p.deny[textnorm.Fold(path.Locality)]
}

// IsLocalitiesHeading implements Site.
func (p *Profile) IsLocalitiesHeading(text string) bool {
	return containsFolded(text, p.LocalitiesMarker)
}

// IsWelcomeHeading implements Site.
func (p *Profile) IsWelcomeHeading(text string) bool {
	return containsFolded(text, p.WelcomeMarker)
}

var labelTrim = regexp.MustCompile(`[\s:]+$`)

// IsAddressLabel implements Site. The whole label or its last word must
// equal one of the profile's address labels, ignoring case, diacritics and a
// trailing colon. "Besøks- og postadresse" qualifies, "E-postadresse" does
// not.
func (p *Profile) IsAddressLabel(text string) bool {
	got := textnorm.Fold(labelTrim.ReplaceAllString(text, ""))
	if got == "" {
		return false
	}
	fields := strings.Fields(got)
	last := fields[len(fields)-1]
	for _, l := range p.Labels {
		want := textnorm.Fold(l)
		if got == want || last == want {
			return true
		}
	}
	return false
}

func containsFolded(text, marker string) bool {
	if marker == "" {
		return false
	}
	return strings.Contains(textnorm.Fold(text), textnorm.Fold(marker))
}

// profileFile is the YAML document layout for LoadProfiles.
type profileFile struct {
	Sites []*Profile `yaml:"sites"`
}

// LoadProfiles reads site profiles from a YAML file and initializes them.
func LoadProfiles(path string) ([]*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "site: read profiles %s", path)
	}
	var doc profileFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "site: parse profiles %s", path)
	}
	for _, p := range doc.Sites {
		if err := p.Init(); err != nil {
			return nil, err
		}
	}
	return doc.Sites, nil
}
