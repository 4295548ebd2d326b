package bing

// Locations API response types.

type locationResponse struct {
	ResourceSets []resourceSet `json:"resourceSets"`
}

type resourceSet struct {
	Resources []locationResource `json:"resources"`
}

type locationResource struct {
	Name       string  `json:"name"`
	EntityType string  `json:"entityType"`
	Point      point   `json:"point"`
	Address    address `json:"address"`
}

type point struct {
	Coordinates []float64 `json:"coordinates"` // [lat, lon]
}

type address struct {
	AddressLine       string `json:"addressLine"`
	Locality          string `json:"locality"`
	Neighborhood      string `json:"neighborhood"`
	AdminDistrict     string `json:"adminDistrict"`
	AdminDistrict2    string `json:"adminDistrict2"`
	FormattedAddress  string `json:"formattedAddress"`
	PostalCode        string `json:"postalCode"`
	CountryRegionISO2 string `json:"countryRegionIso2"`
	CountryRegion     string `json:"countryRegion"`
	Landmark          string `json:"landmark"`
}

// Spatial Data API response types.

type boundaryResponse struct {
	D struct {
		Results []boundaryResult `json:"results"`
	} `json:"d"`
}

type boundaryResult struct {
	Primitives []primitive `json:"Primitives"`
}

type primitive struct {
	Shape string `json:"Shape"`
}
