package domain

import "strings"

// Category narrows a lookup to an administrative or place level.
type Category string

const (
	CategoryAddress         Category = "Address"
	CategoryCity            Category = "City"
	CategoryContinent       Category = "Continent"
	CategoryCountryRegion   Category = "Country"
	CategoryCounty          Category = "County"
	CategoryLongitude       Category = "Longitude"
	CategoryLatitude        Category = "Latitude"
	CategoryPlace           Category = "Place"
	CategoryPostalCode      Category = "PostalCode"
	CategoryStateOrProvince Category = "StateOrProvince"

	// CategoryPoint tags reverse lookups. It is not accepted from callers.
	CategoryPoint Category = "Point"
)

var categories = []Category{
	CategoryAddress,
	CategoryCity,
	CategoryContinent,
	CategoryCountryRegion,
	CategoryCounty,
	CategoryLongitude,
	CategoryLatitude,
	CategoryPlace,
	CategoryPostalCode,
	CategoryStateOrProvince,
}

// Categories returns the caller-facing category enumeration.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ParseCategory matches s case-insensitively against the enumeration and
// returns the canonical spelling. Unknown values are returned verbatim with
// ok set to false.
func ParseCategory(s string) (c Category, ok bool) {
	for _, c := range categories {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return Category(s), false
}
