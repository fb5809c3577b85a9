package analysis

import (
	"strings"

	"healthassist/internal/models"
)

var fallbackDietPlan = []string{
	"Stay hydrated with plenty of water",
	"Eat light, easily digestible foods",
	"Include fruits and vegetables rich in vitamins",
	"Avoid processed and high-fat foods",
	"Get adequate rest",
}

type fallbackRule struct {
	matches  func(s string) bool
	hospital string
	severity string
	urgency  string
	reason   string
}

// Rules are checked in order; the first match wins.
var fallbackRules = []fallbackRule{
	{
		matches:  containsAny("chest pain", "heart", "cardiac"),
		hospital: models.HospitalTypeHeart,
		severity: models.SeverityHigh,
		urgency:  models.UrgencyUrgent,
		reason:   "Chest pain could indicate cardiovascular issues and requires immediate medical attention",
	},
	{
		matches:  containsAny("eye", "vision", "sight"),
		hospital: models.HospitalTypeEye,
		severity: models.SeverityMedium,
		urgency:  models.UrgencyRoutine,
		reason:   "Eye-related symptoms that may require ophthalmologic evaluation",
	},
	{
		matches: func(s string) bool {
			return strings.Contains(s, "fever") && strings.Contains(s, "severe")
		},
		hospital: models.HospitalTypeEmergency,
		severity: models.SeverityMedium,
		urgency:  models.UrgencyUrgent,
		reason:   "High fever may indicate infection or other conditions requiring prompt treatment",
	},
	{
		matches:  containsAny("headache", "migraine"),
		hospital: models.HospitalTypeGeneral,
		severity: models.SeverityMedium,
		urgency:  models.UrgencyRoutine,
		reason:   "Headaches may have various causes and should be evaluated by a healthcare provider",
	},
}

func containsAny(needles ...string) func(string) bool {
	return func(s string) bool {
		for _, n := range needles {
			if strings.Contains(s, n) {
				return true
			}
		}
		return false
	}
}

// Fallback builds an assessment from keyword rules alone. It is used
// whenever the model result is unavailable.
func Fallback(symptoms string) *models.AnalysisResult {
	result := &models.AnalysisResult{
		DetectedSymptoms: models.FlexibleText(symptoms),
		HospitalType:     models.HospitalTypeGeneral,
		PossibleReasons:  models.StringList{"Common symptoms that may require basic medical evaluation"},
		DietPlan:         append(models.StringList(nil), fallbackDietPlan...),
		Severity:         models.SeverityLow,
		Urgency:          models.UrgencyRoutine,
		Source:           models.SourceFallback,
	}

	lower := strings.ToLower(symptoms)
	for _, rule := range fallbackRules {
		if rule.matches(lower) {
			result.HospitalType = rule.hospital
			result.Severity = rule.severity
			result.Urgency = rule.urgency
			result.PossibleReasons = models.StringList{rule.reason}
			break
		}
	}
	return result
}
