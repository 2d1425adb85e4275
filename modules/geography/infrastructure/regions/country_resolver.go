package regions

import (
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/iota-uz/geo-migrate/modules/geography/domain/geography"
)

// CountryResolver maps English country names to ISO 3166 codes using the
// CLDR region tables bundled with golang.org/x/text.
type CountryResolver struct {
	once   sync.Once
	byName map[string]geography.RegionCodes
}

func NewCountryResolver() *CountryResolver {
	return &CountryResolver{}
}

func (r *CountryResolver) Resolve(name string) (geography.RegionCodes, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return geography.RegionCodes{}, false
	}
	r.once.Do(r.build)
	codes, ok := r.byName[foldName(name)]
	return codes, ok
}

// Len reports how many country names are indexed.
func (r *CountryResolver) Len() int {
	r.once.Do(r.build)
	return len(r.byName)
}

func (r *CountryResolver) build() {
	namer := display.English.Regions()
	r.byName = make(map[string]geography.RegionCodes, 256)

	for a := 'A'; a <= 'Z'; a++ {
		for b := 'A'; b <= 'Z'; b++ {
			region, err := language.ParseRegion(string([]rune{a, b}))
			// Withdrawn codes (DD, VD, YD, ...) share display names with
			// their successors.
			if err != nil || !region.IsCountry() || region.Canonicalize() != region {
				continue
			}
			name := namer.Name(region)
			iso3 := region.ISO3()
			if name == "" || iso3 == "" {
				continue
			}
			key := foldName(name)
			if _, exists := r.byName[key]; exists {
				continue
			}
			r.byName[key] = geography.RegionCodes{
				ISO2: region.String(),
				ISO3: iso3,
			}
		}
	}
}

// foldName builds a fresh Caser per call; Casers are stateful.
func foldName(s string) string {
	return cases.Fold().String(s)
}
