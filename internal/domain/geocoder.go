package domain

import "context"

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Resource is a reverse-geocoded place with its address breakdown.
type Resource struct {
	Coordinate
	AddressLine       string `json:"address_line,omitempty"`
	Locality          string `json:"locality,omitempty"`
	Neighborhood      string `json:"neighborhood,omitempty"`
	AdminDistrict     string `json:"admin_district,omitempty"`
	AdminDistrict2    string `json:"admin_district2,omitempty"`
	FormattedAddress  string `json:"formatted_address,omitempty"`
	PostalCode        string `json:"postal_code,omitempty"`
	CountryRegionISO2 string `json:"country_region_iso2,omitempty"`
	CountryRegion     string `json:"country_region,omitempty"`
	Landmark          string `json:"landmark,omitempty"`
	Name              string `json:"name,omitempty"`
}

// BoundaryPolygon is one ring of a boundary in the provider's compressed
// encoding. Decoding is left to the consumer.
type BoundaryPolygon struct {
	Native string `json:"native"`
}

// BoundaryCoordinate is the query position plus the boundary rings that
// enclose it, largest first.
type BoundaryCoordinate struct {
	Coordinate
	Locations []BoundaryPolygon `json:"locations"`
}

// Location is implemented by every successful lookup payload.
type Location interface {
	Point() Coordinate
}

func (c Coordinate) Point() Coordinate         { return c }
func (r Resource) Point() Coordinate           { return r.Coordinate }
func (b BoundaryCoordinate) Point() Coordinate { return b.Coordinate }

// Result is the outcome of one lookup: a location or an error, never both.
type Result struct {
	Location Location
	Err      error
}

// Success wraps a parsed location.
func Success(loc Location) Result {
	return Result{Location: loc}
}

// Failure wraps an error. A nil err is recorded as ErrEmptyResult.
func Failure(err error) Result {
	if err == nil {
		err = ErrEmptyResult
	}
	return Result{Err: err}
}

// OK reports whether the result carries a location.
func (r Result) OK() bool {
	return r.Location != nil && r.Err == nil
}

// QuerySpec is a normalized lookup request.
type QuerySpec interface {
	// CacheKey returns the canonical key, or false if the query must not be
	// cached or deduplicated.
	CacheKey() (string, bool)
	// Text is the sanitized query text sent to the provider.
	Text() string
	Category() Category
}

// Geocoder resolves place names and coordinates through a mapping provider.
type Geocoder interface {
	// Geocode resolves free text of the given category to a coordinate.
	Geocode(ctx context.Context, query string, category Category) (Coordinate, error)

	// GeocodeBoundary resolves the boundary polygons enclosing a position.
	GeocodeBoundary(ctx context.Context, lat, lon float64, category Category, levelOfDetail, maxGeoData int) (BoundaryCoordinate, error)

	// GeocodePoint reverse-geocodes a position, preferring the given entity types.
	GeocodePoint(ctx context.Context, lat, lon float64, entities []string) (Resource, error)
}
