package hospitals

import (
	"regexp"
	"strings"

	"googlemaps.github.io/maps"
)

var typeNoise = []*regexp.Regexp{
	regexp.MustCompile(`hospitals?`),
	regexp.MustCompile(`clinic`),
	regexp.MustCompile(`care`),
}

// Query is a resolved places search.
type Query struct {
	Keyword   string
	PlaceType maps.PlaceType
}

// ResolveQuery maps a hospital type, as produced by the analysis, to a
// places keyword and place type. Specialties the provider files under
// doctors or dentists are searched there.
func ResolveQuery(hospitalType string) Query {
	q := Query{Keyword: "hospital", PlaceType: maps.PlaceTypeHospital}

	clean := strings.ToLower(hospitalType)
	for _, re := range typeNoise {
		clean = re.ReplaceAllString(clean, "")
	}
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return q
	}

	switch {
	case strings.Contains(clean, "eye"):
		return Query{Keyword: "eye hospital ophthalmologist", PlaceType: maps.PlaceTypeDoctor}
	case strings.Contains(clean, "heart"), strings.Contains(clean, "cardio"):
		return Query{Keyword: "heart hospital cardiologist", PlaceType: maps.PlaceTypeDoctor}
	case strings.Contains(clean, "dental"):
		return Query{Keyword: "dental clinic dentist", PlaceType: maps.PlaceTypeDentist}
	case strings.Contains(clean, "emergency"):
		return Query{Keyword: "emergency hospital", PlaceType: maps.PlaceTypeHospital}
	}
	q.Keyword = clean + " hospital"
	return q
}
