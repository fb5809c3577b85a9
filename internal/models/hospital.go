// Package models - Location and hospital search types.
package models

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Geometry mirrors the places provider's geometry block so the frontend can
// place markers without a second lookup.
type Geometry struct {
	Location Coordinates `json:"location"`
}

// Hospital is one nearby search result, enriched with its distance from the
// requesting point.
type Hospital struct {
	Name          string   `json:"name"`
	Vicinity      string   `json:"vicinity"`
	Address       string   `json:"address"`
	PlaceID       string   `json:"place_id"`
	Rating        any      `json:"rating"` // number, or "N/A" when unrated
	OpeningHours  string   `json:"opening_hours"`
	Geometry      Geometry `json:"geometry"`
	Distance      string   `json:"distance"`
	DistanceValue float64  `json:"distanceValue"`
	Types         []string `json:"types"`
}

// AddressRequest is the body of POST /get-address. Pointers distinguish a
// missing coordinate from a zero one.
type AddressRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

type AddressResponse struct {
	Address string `json:"address"`
}

// NearbyHospitalsRequest is the body of POST /nearby-hospitals. Radius is in
// kilometres; zero means the configured default.
type NearbyHospitalsRequest struct {
	Lat          *float64 `json:"lat"`
	Lng          *float64 `json:"lng"`
	HospitalType string   `json:"hospitalType"`
	Radius       float64  `json:"radius"`
}
