package bing

import (
	"strings"

	"github.com/couchcryptid/geocode-orchestrator/internal/domain"
)

// Provider entity types.
const (
	EntityAddress        = "Address"
	EntityAdminDivision1 = "AdminDivision1"
	EntityAdminDivision2 = "AdminDivision2"
	EntityContinent      = "Continent"
	EntityCountryRegion  = "CountryRegion"
	EntityPopulatedPlace = "PopulatedPlace"
	EntityPostcode       = "Postcode"
	EntityPostcode1      = "Postcode1"
	EntitySovereign      = "Sovereign"
)

// postcodeEntities widens a postcode lookup to every postcode level.
const postcodeEntities = "Postcode,Postcode1,Postcode2,Postcode3,Postcode4"

// EntityTables maps categories to provider entity types. Build it once with
// NewEntityTables and share the pointer; it is read-only afterwards.
type EntityTables struct {
	address  map[string]string
	boundary map[string]string
}

// NewEntityTables builds the address and boundary category tables.
func NewEntityTables() *EntityTables {
	return &EntityTables{
		address: lowerKeys(map[domain.Category]string{
			domain.CategoryContinent:       EntityContinent,
			domain.CategoryCountryRegion:   EntitySovereign,
			domain.CategoryStateOrProvince: EntityAdminDivision1,
			domain.CategoryCounty:          EntityAdminDivision2,
			domain.CategoryCity:            EntityPopulatedPlace,
			domain.CategoryPostalCode:      EntityPostcode,
			domain.CategoryAddress:         EntityAddress,
		}),
		boundary: lowerKeys(map[domain.Category]string{
			domain.CategoryCountryRegion:   EntityCountryRegion,
			domain.CategoryStateOrProvince: EntityAdminDivision1,
			domain.CategoryCounty:          EntityAdminDivision2,
			domain.CategoryCity:            EntityPopulatedPlace,
			domain.CategoryPostalCode:      EntityPostcode1,
		}),
	}
}

// Address returns the entity type for an address lookup, or "" for free text.
func (t *EntityTables) Address(c domain.Category) string {
	return t.address[strings.ToLower(string(c))]
}

// Boundary returns the entity type for a boundary lookup, or "" if the
// category has no boundary.
func (t *EntityTables) Boundary(c domain.Category) string {
	return t.boundary[strings.ToLower(string(c))]
}

func lowerKeys(m map[domain.Category]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(string(k))] = v
	}
	return out
}
