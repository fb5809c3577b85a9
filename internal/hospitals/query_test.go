package hospitals

import (
	"math"
	"testing"

	"healthassist/internal/models"

	"github.com/stretchr/testify/assert"
	"googlemaps.github.io/maps"
)

func TestResolveQuery(t *testing.T) {
	tests := []struct {
		hospitalType string
		keyword      string
		placeType    maps.PlaceType
	}{
		{"", "hospital", maps.PlaceTypeHospital},
		{models.HospitalTypeGeneral, "hospital", maps.PlaceTypeHospital},
		{"Hospitals", "hospital", maps.PlaceTypeHospital},
		{models.HospitalTypeEye, "eye hospital ophthalmologist", maps.PlaceTypeDoctor},
		{models.HospitalTypeHeart, "heart hospital cardiologist", maps.PlaceTypeDoctor},
		{"Cardiology Centre", "heart hospital cardiologist", maps.PlaceTypeDoctor},
		{models.HospitalTypeDental, "dental clinic dentist", maps.PlaceTypeDentist},
		{models.HospitalTypeEmergency, "emergency hospital", maps.PlaceTypeHospital},
		{models.HospitalTypeOrthopedic, "orthopedic hospital", maps.PlaceTypeHospital},
		{models.HospitalTypeSkin, "skin hospital", maps.PlaceTypeHospital},
		{models.HospitalTypeMentalHealth, "mental health hospital", maps.PlaceTypeHospital},
		{"Urgent Care", "urgent hospital", maps.PlaceTypeHospital},
	}

	for _, tt := range tests {
		t.Run(tt.hospitalType, func(t *testing.T) {
			q := ResolveQuery(tt.hospitalType)
			assert.Equal(t, tt.keyword, q.Keyword)
			assert.Equal(t, tt.placeType, q.PlaceType)
		})
	}
}

func TestDistance(t *testing.T) {
	assert.Equal(t, 0.0, Distance(10, 20, 10, 20))

	// One degree of latitude along a meridian.
	assert.InDelta(t, 111.19, Distance(0, 0, 1, 0), 0.01)

	// Antipodes are half the circumference apart.
	assert.InDelta(t, math.Pi*earthRadiusKm, Distance(0, 0, 0, 180), 0.001)

	// Symmetric.
	assert.InDelta(t, Distance(51.5, -0.12, 48.85, 2.35), Distance(48.85, 2.35, 51.5, -0.12), 1e-9)
}
