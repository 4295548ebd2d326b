package bing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/couchcryptid/geocode-orchestrator/internal/domain"
)

// Boundary defaults applied when the caller leaves them unset.
const (
	DefaultLevelOfDetail = 2
	DefaultMaxGeoData    = 3
)

// Endpoints identifies the provider deployment. Both URLs are part of every
// cache key so results from different deployments never mix.
type Endpoints struct {
	Geocoding string
	Spatial   string
}

var (
	unsafeChars  = regexp.MustCompile("[<()>#@!$%&*^`'\"/+:]")
	unsafeScheme = regexp.MustCompile(`(?i)(javascript:|data:)`)
)

// Sanitize returns query unchanged, or "" if it contains characters or
// schemes that are never forwarded to the provider.
func Sanitize(query string) string {
	if unsafeChars.MatchString(query) || unsafeScheme.MatchString(query) {
		return ""
	}
	return query
}

type baseQuery struct {
	endpoints Endpoints
	text      string
	category  domain.Category
}

func (q baseQuery) Text() string               { return q.text }
func (q baseQuery) Category() domain.Category { return q.category }

func (q baseQuery) CacheKey() (string, bool) {
	key := fmt.Sprintf("g:%s; s:%s;%s/%s", q.endpoints.Geocoding, q.endpoints.Spatial, q.text, q.category)
	return strings.ToLower(key), true
}

// AddressQuery is a forward lookup of free text.
type AddressQuery struct {
	baseQuery
}

// NewAddressQuery sanitizes query and normalizes category.
func NewAddressQuery(ep Endpoints, query string, category domain.Category) AddressQuery {
	c, _ := domain.ParseCategory(string(category))
	return AddressQuery{baseQuery{endpoints: ep, text: Sanitize(query), category: c}}
}

// PointQuery is a reverse lookup of a position. It is never cached.
type PointQuery struct {
	baseQuery
	Position domain.Coordinate
	Entities []string
}

// NewPointQuery builds a reverse lookup preferring the given entity types.
func NewPointQuery(ep Endpoints, lat, lon float64, entities []string) PointQuery {
	return PointQuery{
		baseQuery: baseQuery{endpoints: ep, text: formatCoords(lat, lon), category: domain.CategoryPoint},
		Position:  domain.Coordinate{Latitude: lat, Longitude: lon},
		Entities:  append([]string(nil), entities...),
	}
}

func (PointQuery) CacheKey() (string, bool) { return "", false }

// BoundaryQuery asks for the polygons of the administrative area at a position.
type BoundaryQuery struct {
	baseQuery
	Position      domain.Coordinate
	LevelOfDetail int
	MaxGeoData    int
}

// NewBoundaryQuery builds a boundary lookup. A negative levelOfDetail or a
// non-positive maxGeoData falls back to the defaults. Both values are part of
// the query text, so different detail levels never share a cache key.
func NewBoundaryQuery(ep Endpoints, lat, lon float64, category domain.Category, levelOfDetail, maxGeoData int) BoundaryQuery {
	if levelOfDetail < 0 {
		levelOfDetail = DefaultLevelOfDetail
	}
	if maxGeoData <= 0 {
		maxGeoData = DefaultMaxGeoData
	}
	c, _ := domain.ParseCategory(string(category))
	text := formatCoords(lat, lon) + "," + strconv.Itoa(levelOfDetail) + "," + strconv.Itoa(maxGeoData)
	return BoundaryQuery{
		baseQuery:     baseQuery{endpoints: ep, text: text, category: c},
		Position:      domain.Coordinate{Latitude: lat, Longitude: lon},
		LevelOfDetail: levelOfDetail,
		MaxGeoData:    maxGeoData,
	}
}

func formatCoords(lat, lon float64) string {
	return formatFloat(lat) + "," + formatFloat(lon)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
