package bing

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/couchcryptid/geocode-orchestrator/internal/domain"
)

// Builder turns query specs into provider request URLs.
type Builder struct {
	apiKey string
	tables *EntityTables
}

// NewBuilder creates a Builder that signs every URL with apiKey.
func NewBuilder(apiKey string, tables *EntityTables) *Builder {
	return &Builder{apiKey: apiKey, tables: tables}
}

// Build returns the request URL for spec, or an error wrapping
// domain.ErrUnsupportedQuery when the query cannot be expressed.
func (b *Builder) Build(spec domain.QuerySpec, locale string) (string, error) {
	switch q := spec.(type) {
	case AddressQuery:
		return b.address(q, locale)
	case PointQuery:
		return b.point(q)
	case BoundaryQuery:
		return b.boundary(q, locale)
	default:
		return "", fmt.Errorf("%w: unknown spec %T", domain.ErrUnsupportedQuery, spec)
	}
}

func (b *Builder) address(q AddressQuery, locale string) (string, error) {
	text := q.Text()
	if text == "" {
		return "", domain.ErrUnsupportedQuery
	}
	decoded, err := url.PathUnescape(text)
	if err != nil {
		return "", fmt.Errorf("%w: decode query: %v", domain.ErrUnsupportedQuery, err)
	}

	params := url.Values{}
	twoChar := utf8.RuneCountInString(text) == 2
	queryAdded := false

	switch entity := b.tables.Address(q.Category()); {
	case entity == "":
	case entity == EntityPostcode:
		params.Set("includeEntityTypes", postcodeEntities)
	case (entity == EntityAdminDivision1 || entity == EntityAdminDivision2) && !strings.Contains(text, ","):
		params.Set("adminDistrict", decoded)
		queryAdded = true
	default:
		params.Set("includeEntityTypes", entity)
		if twoChar && entity == EntitySovereign {
			params.Set("countryRegion", decoded)
			queryAdded = true
		}
	}

	if !queryAdded {
		params.Set("q", decoded)
	}
	params.Set("c", MapLocale(locale))
	params.Set("maxRes", "20")
	if twoChar && q.Category() == domain.CategoryCountryRegion {
		params.Set("include", "ciso2")
	}
	return b.withParams(q.endpoints.Geocoding, "", params)
}

func (b *Builder) point(q PointQuery) (string, error) {
	params := url.Values{}
	params.Set("include", "ciso2")
	if len(q.Entities) > 0 {
		params.Set("includeEntityTypes", strings.Join(q.Entities, ","))
	}
	return b.withParams(q.endpoints.Geocoding, q.Text(), params)
}

func (b *Builder) boundary(q BoundaryQuery, locale string) (string, error) {
	entity := b.tables.Boundary(q.Category())
	if entity == "" {
		return "", fmt.Errorf("%w: no boundary for category %q", domain.ErrUnsupportedQuery, q.Category())
	}

	culture, region := splitCulture(MapLocale(locale))
	args := []string{
		formatFloat(q.Position.Latitude),
		formatFloat(q.Position.Longitude),
		fmt.Sprint(q.LevelOfDetail),
		quote(entity),
		"1",
		"0",
		quote(culture),
	}
	if region != "" {
		args = append(args, quote(region))
	}

	params := url.Values{}
	params.Set("SpatialFilter", "GetBoundary("+strings.Join(args, ", ")+")")
	params.Set("$format", "json")
	return b.withParams(q.endpoints.Spatial, "", params)
}

// withParams appends segment to the base path and merges params into the
// base query string. Parameters already present on the base are kept.
func (b *Builder) withParams(base, segment string, params url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: parse endpoint: %v", domain.ErrUnsupportedQuery, err)
	}
	if segment != "" {
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		u.Path += segment
	}

	merged := u.Query()
	for k, vs := range params {
		if merged.Has(k) {
			continue
		}
		merged[k] = vs
	}
	if b.apiKey != "" && !merged.Has("key") {
		merged.Set("key", b.apiKey)
	}
	u.RawQuery = merged.Encode()
	return u.String(), nil
}

func quote(s string) string {
	return "'" + s + "'"
}
