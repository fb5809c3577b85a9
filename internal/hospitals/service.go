// Package hospitals finds care facilities near a location and resolves
// coordinates to street addresses through the Google Maps platform.
package hospitals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"healthassist/internal/models"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"googlemaps.github.io/maps"
)

// AddressNotFound is returned by Address when the provider has no match.
const AddressNotFound = "Address not found"

var (
	// ErrMapsNotConfigured is returned when no maps API key was provided.
	ErrMapsNotConfigured = errors.New("hospitals: maps API key not configured")
	// ErrInvalidCoordinates is returned for latitudes outside [-90, 90] or
	// longitudes outside [-180, 180].
	ErrInvalidCoordinates = errors.New("hospitals: coordinates out of range")
)

// PlacesAPI is the subset of *maps.Client the service uses.
type PlacesAPI interface {
	NearbySearch(ctx context.Context, r *maps.NearbySearchRequest) (maps.PlacesSearchResponse, error)
	ReverseGeocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// NewMapsClient creates a Google Maps client, or returns ErrMapsNotConfigured
// when apiKey is empty.
func NewMapsClient(apiKey string) (*maps.Client, error) {
	if apiKey == "" {
		return nil, ErrMapsNotConfigured
	}
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return client, nil
}

type Options struct {
	MaxResults       int
	GeocodeCacheSize int
	GeocodeCacheTTL  time.Duration
	RequestTimeout   time.Duration
}

// Service answers location queries. A nil PlacesAPI yields a service whose
// calls fail with ErrMapsNotConfigured.
type Service struct {
	places     PlacesAPI
	maxResults int
	timeout    time.Duration
	addresses  *expirable.LRU[string, string]
	logger     *slog.Logger
}

func NewService(places PlacesAPI, opts Options) *Service {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 10
	}
	s := &Service{
		places:     places,
		maxResults: opts.MaxResults,
		timeout:    opts.RequestTimeout,
		logger:     slog.Default().With("component", "hospitals"),
	}
	if opts.GeocodeCacheSize > 0 {
		s.addresses = expirable.NewLRU[string, string](opts.GeocodeCacheSize, nil, opts.GeocodeCacheTTL)
	}
	return s
}

// Configured reports whether a maps provider is available.
func (s *Service) Configured() bool { return s.places != nil }

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// FindNearby searches for facilities matching hospitalType within radiusKm
// of (lat, lng). Results beyond the radius are dropped, the rest sorted by
// distance and capped at the configured maximum.
func (s *Service) FindNearby(ctx context.Context, lat, lng float64, hospitalType string, radiusKm float64) ([]models.Hospital, error) {
	if s.places == nil {
		return nil, ErrMapsNotConfigured
	}
	if err := validateCoordinates(lat, lng); err != nil {
		return nil, err
	}

	q := ResolveQuery(hospitalType)
	s.logger.Info("searching nearby facilities",
		"keyword", q.Keyword,
		"type", q.PlaceType,
		"radius_km", radiusKm,
	)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.places.NearbySearch(ctx, &maps.NearbySearchRequest{
		Location: &maps.LatLng{Lat: lat, Lng: lng},
		Radius:   uint(radiusKm * 1000),
		Keyword:  q.Keyword,
		Type:     q.PlaceType,
	})
	if err != nil {
		return nil, fmt.Errorf("nearby search failed: %w", err)
	}

	hospitals := make([]models.Hospital, 0, len(resp.Results))
	for _, place := range resp.Results {
		loc := place.Geometry.Location
		d := Distance(lat, lng, loc.Lat, loc.Lng)
		if d > radiusKm {
			continue
		}
		hospitals = append(hospitals, toHospital(place, d))
	}

	sort.SliceStable(hospitals, func(i, j int) bool {
		return hospitals[i].DistanceValue < hospitals[j].DistanceValue
	})
	if len(hospitals) > s.maxResults {
		hospitals = hospitals[:s.maxResults]
	}

	s.logger.Info("nearby search completed", "results", len(resp.Results), "returned", len(hospitals))
	return hospitals, nil
}

func toHospital(place maps.PlacesSearchResult, distanceKm float64) models.Hospital {
	var rating any = "N/A"
	if place.Rating > 0 {
		rating = place.Rating
	}

	hours := "Hours not available"
	if place.OpeningHours != nil {
		hours = "Closed now"
		if place.OpeningHours.OpenNow != nil && *place.OpeningHours.OpenNow {
			hours = "Open now"
		}
	}

	types := place.Types
	if types == nil {
		types = []string{}
	}

	return models.Hospital{
		Name:          place.Name,
		Vicinity:      place.Vicinity,
		Address:       place.Vicinity,
		PlaceID:       place.PlaceID,
		Rating:        rating,
		OpeningHours:  hours,
		Geometry:      models.Geometry{Location: models.Coordinates{Lat: place.Geometry.Location.Lat, Lng: place.Geometry.Location.Lng}},
		Distance:      fmt.Sprintf("%.1f km", distanceKm),
		DistanceValue: distanceKm,
		Types:         types,
	}
}

// Address reverse geocodes (lat, lng) to the provider's first formatted
// address, or AddressNotFound when there is none. Found addresses are cached
// by coordinates rounded to five decimals (about a metre).
func (s *Service) Address(ctx context.Context, lat, lng float64) (string, error) {
	if s.places == nil {
		return "", ErrMapsNotConfigured
	}
	if err := validateCoordinates(lat, lng); err != nil {
		return "", err
	}

	key := fmt.Sprintf("%.5f,%.5f", lat, lng)
	if s.addresses != nil {
		if addr, ok := s.addresses.Get(key); ok {
			return addr, nil
		}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	results, err := s.places.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: lat, Lng: lng},
	})
	if err != nil {
		return "", fmt.Errorf("reverse geocode failed: %w", err)
	}
	if len(results) == 0 || results[0].FormattedAddress == "" {
		return AddressNotFound, nil
	}

	addr := results[0].FormattedAddress
	if s.addresses != nil {
		s.addresses.Add(key, addr)
	}
	return addr, nil
}

func validateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return fmt.Errorf("%w: lat=%g lng=%g", ErrInvalidCoordinates, lat, lng)
	}
	return nil
}
