// Package domain models geocoding lookups and their results.
//
// # Lookup Kinds
//
// Three lookups are supported, each served by its own request queue:
//
//	Address   free text + category  →  Coordinate
//	Boundary  lat/long + category   →  BoundaryCoordinate (encoded polygon rings)
//	Point     lat/long + entities   →  Resource (reverse geocode)
//
// # Categories
//
// A category narrows an address or boundary lookup to an administrative
// level. Matching is case-insensitive; [ParseCategory] normalizes the
// spelling. The country category is spelled "Country" on the wire even though
// the provider calls the level CountryRegion.
//
// # Results
//
// A [Result] carries either a [Location] or an error, never both. Failures are
// classified by sentinel errors ([ErrUnsupportedQuery], [ErrEmptyResult],
// [ErrCancelled], [ErrTransportFailure]); use errors.Is or [ErrorKind].
//
// # Cache Keys
//
// Address and boundary lookups expose a canonical lowercase key combining the
// provider endpoints, the sanitized query text, and the category. Identical
// keys are interchangeable for caching. Point lookups have no key and are
// never cached.
package domain
