// Package site describes how to read one organization's website: where the
// locality hierarchy lives, which links qualify at each level, and which
// markers and selectors the extractor relies on.
package site

// Path is the position of a URL inside the site's locality hierarchy.
type Path struct {
	Region   string
	Locality string
	// Depth counts path segments after the hierarchy root.
	Depth int
}

// Selectors are the CSS selectors the page extractor uses.
type Selectors struct {
	Name            string `yaml:"name"`
	Lead            string `yaml:"lead"`
	MetaDescription string `yaml:"meta_description"`
	Marker          string `yaml:"marker"`
	MarkerAttr      string `yaml:"marker_attr"`
	OGImage         string `yaml:"og_image"`
	Body            string `yaml:"body"`
}

// Site is the per-organization extraction strategy. The crawl pipeline is
// shared; everything organization specific goes through this interface.
type Site interface {
	// Name is the registry key ("rodekors").
	Name() string
	// Organization is written into every record.
	Organization() string
	// IndexURL is the hierarchy root page listing regions.
	IndexURL() string
	// OutputName is the base name of the output files.
	OutputName() string

	// ParsePath locates a URL (absolute or relative) in the hierarchy.
	ParsePath(rawURL string) Path
	// Canonical resolves href against the site and returns its canonical
	// form: absolute, no query or fragment, exactly one trailing slash.
	Canonical(href string) (string, bool)
	// IsRegionLink reports whether href points at a region page.
	IsRegionLink(href string) bool
	// IsLocalityLink reports whether href points at a locality page, inside
	// region when region is non-empty.
	IsLocalityLink(href, region string) bool
	// RegionURL returns the canonical URL of a region slug.
	RegionURL(region string) string

	IsLocalitiesHeading(text string) bool
	IsWelcomeHeading(text string) bool
	IsAddressLabel(text string) bool
	// AddressLabels lists the labels that introduce an address in free text.
	AddressLabels() []string

	Selectors() Selectors
}
