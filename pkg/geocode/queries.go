package geocode

import (
	"regexp"
	"strings"

	"github.com/codefornorway/civic-scrapers/internal/textnorm"
)

// maxQueries caps the candidates tried per address.
const maxQueries = 6

var (
	postalLocalityRe = regexp.MustCompile(`\b(\d{4})\s+([\p{L}\- ]+)`)
	postalOnlyRe     = regexp.MustCompile(`\b(\d{4})\b`)
)

// BuildQueries returns up to six distinct provider queries for an address,
// most specific first: the full address, the address with the region, the
// postal code with its locality (or the postal code alone), the locality with
// the region, and the locality alone. city and region may be URL slugs.
func (g *Geocoder) BuildQueries(address, city, region string) []string {
	return BuildQueries(address, city, region, g.country)
}

// BuildQueries is the country-parameterized form of Geocoder.BuildQueries.
func BuildQueries(address, city, region, country string) []string {
	addr := textnorm.Space(address)
	cityTC := textnorm.Slug(city)
	regionTC := textnorm.Slug(region)
	suffix := ""
	if country != "" {
		suffix = ", " + country
	}

	var postal, locality string
	if m := postalLocalityRe.FindStringSubmatch(addr); m != nil {
		postal, locality = m[1], textnorm.Title(m[2])
	} else if m := postalOnlyRe.FindStringSubmatch(addr); m != nil {
		postal = m[1]
	}

	var candidates []string
	if addr != "" {
		candidates = append(candidates, addr+suffix)
		if regionTC != "" {
			candidates = append(candidates, addr+", "+regionTC+suffix)
		}
	}
	switch {
	case postal != "" && locality != "":
		candidates = append(candidates, postal+" "+locality+suffix)
	case postal != "":
		candidates = append(candidates, postal+suffix)
	}
	if cityTC != "" && regionTC != "" {
		candidates = append(candidates, cityTC+", "+regionTC+suffix)
	}
	if cityTC != "" {
		candidates = append(candidates, cityTC+suffix)
	}

	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, q := range candidates {
		k := strings.ToLower(q)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, q)
		if len(out) == maxQueries {
			break
		}
	}
	return out
}
