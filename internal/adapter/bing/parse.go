package bing

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/couchcryptid/geocode-orchestrator/internal/domain"
)

// Parser turns provider response bodies into results.
type Parser struct {
	tables *EntityTables
}

// NewParser creates a Parser scoring candidates against tables.
func NewParser(tables *EntityTables) *Parser {
	return &Parser{tables: tables}
}

// Parse never panics on malformed input; every failure is an error result.
func (p *Parser) Parse(spec domain.QuerySpec, body []byte) domain.Result {
	switch q := spec.(type) {
	case AddressQuery:
		return p.address(q, body)
	case PointQuery:
		return p.point(q, body)
	case BoundaryQuery:
		return p.boundary(q, body)
	default:
		return domain.Failure(fmt.Errorf("%w: unknown spec %T", domain.ErrUnsupportedQuery, spec))
	}
}

func (p *Parser) address(q AddressQuery, body []byte) domain.Result {
	resources, err := decodeResources(body)
	if err != nil {
		return domain.Failure(err)
	}

	entity := p.tables.Address(q.Category())
	countryCode := q.Category() == domain.CategoryCountryRegion && utf8.RuneCountInString(q.Text()) == 2

	best := bestCandidate(resources, func(r locationResource) int {
		score := 0
		if countryCode && strings.EqualFold(r.Address.CountryRegionISO2, q.Text()) {
			score += 2
		}
		if r.EntityType != "" && strings.EqualFold(r.EntityType, entity) {
			score++
		}
		return score
	})
	if best == nil {
		return domain.Failure(domain.ErrEmptyResult)
	}
	pos, ok := best.position()
	if !ok {
		return domain.Failure(fmt.Errorf("%w: candidate has no coordinates", domain.ErrEmptyResult))
	}
	return domain.Success(pos)
}

func (p *Parser) point(q PointQuery, body []byte) domain.Result {
	resources, err := decodeResources(body)
	if err != nil {
		return domain.Failure(err)
	}

	best := bestCandidate(resources, func(r locationResource) int {
		if slices.Contains(q.Entities, r.EntityType) {
			return 1
		}
		return 0
	})
	if best == nil {
		return domain.Failure(domain.ErrEmptyResult)
	}
	pos, ok := best.position()
	if !ok {
		return domain.Failure(fmt.Errorf("%w: candidate has no coordinates", domain.ErrEmptyResult))
	}
	return domain.Success(domain.Resource{
		Coordinate:        pos,
		AddressLine:       best.Address.AddressLine,
		Locality:          best.Address.Locality,
		Neighborhood:      best.Address.Neighborhood,
		AdminDistrict:     best.Address.AdminDistrict,
		AdminDistrict2:    best.Address.AdminDistrict2,
		FormattedAddress:  best.Address.FormattedAddress,
		PostalCode:        best.Address.PostalCode,
		CountryRegionISO2: best.Address.CountryRegionISO2,
		CountryRegion:     best.Address.CountryRegion,
		Landmark:          best.Address.Landmark,
		Name:              best.Name,
	})
}

func (p *Parser) boundary(q BoundaryQuery, body []byte) domain.Result {
	var resp boundaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Failure(fmt.Errorf("%w: decode response: %v", domain.ErrEmptyResult, err))
	}
	if len(resp.D.Results) == 0 || len(resp.D.Results[0].Primitives) == 0 {
		return domain.Failure(domain.ErrEmptyResult)
	}

	rings := reduceRings(resp.D.Results[0].Primitives, q.MaxGeoData)
	if len(rings) == 0 {
		return domain.Failure(fmt.Errorf("%w: no boundary rings", domain.ErrEmptyResult))
	}
	return domain.Success(domain.BoundaryCoordinate{
		Coordinate: q.Position,
		Locations:  rings,
	})
}

// reduceRings keeps the maxGeoData largest shapes and splits each into its
// encoded ring fragments. The leading element of a shape is a header and is
// dropped; every later element becomes a ring, empty ones included.
// Shapes of equal length keep their response order.
func reduceRings(prims []primitive, maxGeoData int) []domain.BoundaryPolygon {
	sorted := slices.Clone(prims)
	slices.SortStableFunc(sorted, func(a, b primitive) int {
		return len(b.Shape) - len(a.Shape)
	})
	if maxGeoData < len(sorted) {
		sorted = sorted[:max(maxGeoData, 0)]
	}

	var rings []domain.BoundaryPolygon
	for _, prim := range sorted {
		parts := strings.Split(prim.Shape, ",")
		for _, part := range parts[1:] {
			rings = append(rings, domain.BoundaryPolygon{Native: part})
		}
	}
	return rings
}

func decodeResources(body []byte) ([]locationResource, error) {
	var resp locationResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrEmptyResult, err)
	}
	if len(resp.ResourceSets) == 0 {
		return nil, domain.ErrEmptyResult
	}
	return resp.ResourceSets[0].Resources, nil
}

// bestCandidate returns the first resource with the highest score.
func bestCandidate(resources []locationResource, score func(locationResource) int) *locationResource {
	var best *locationResource
	bestScore := -1
	for i := range resources {
		if s := score(resources[i]); s > bestScore {
			best = &resources[i]
			bestScore = s
		}
	}
	return best
}

func (r locationResource) position() (domain.Coordinate, bool) {
	if len(r.Point.Coordinates) < 2 {
		return domain.Coordinate{}, false
	}
	return domain.Coordinate{Latitude: r.Point.Coordinates[0], Longitude: r.Point.Coordinates[1]}, true
}
