package bing

import "github.com/couchcryptid/geocode-orchestrator/internal/domain"

// Codec binds a Builder and Parser to one language preference.
type Codec struct {
	builder *Builder
	parser  *Parser
	locale  string
}

// NewCodec creates a Codec sharing tables between builder and parser.
func NewCodec(apiKey, locale string, tables *EntityTables) *Codec {
	return &Codec{
		builder: NewBuilder(apiKey, tables),
		parser:  NewParser(tables),
		locale:  locale,
	}
}

// Build returns the request URL for spec.
func (c *Codec) Build(spec domain.QuerySpec) (string, error) {
	return c.builder.Build(spec, c.locale)
}

// Parse converts a response body for spec into a result.
func (c *Codec) Parse(spec domain.QuerySpec, body []byte) domain.Result {
	return c.parser.Parse(spec, body)
}
