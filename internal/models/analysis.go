// Package models - Symptom analysis types.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Hospital types the model is asked to choose from. They double as search
// hints for the places provider.
const (
	HospitalTypeGeneral      = "Hospital"
	HospitalTypeEye          = "Eye Hospital"
	HospitalTypeHeart        = "Heart Hospital"
	HospitalTypeDental       = "Dental Clinic"
	HospitalTypeOrthopedic   = "Orthopedic Hospital"
	HospitalTypeSkin         = "Skin Clinic"
	HospitalTypeEmergency    = "Emergency Hospital"
	HospitalTypePediatric    = "Pediatric Hospital"
	HospitalTypeMaternity    = "Maternity Hospital"
	HospitalTypeMentalHealth = "Mental Health Clinic"
)

// HospitalTypes lists every accepted hospital type in prompt order.
var HospitalTypes = []string{
	HospitalTypeGeneral,
	HospitalTypeEye,
	HospitalTypeHeart,
	HospitalTypeDental,
	HospitalTypeOrthopedic,
	HospitalTypeSkin,
	HospitalTypeEmergency,
	HospitalTypePediatric,
	HospitalTypeMaternity,
	HospitalTypeMentalHealth,
}

const (
	SeverityLow    = "Low"
	SeverityMedium = "Medium"
	SeverityHigh   = "High"

	UrgencyRoutine   = "Routine"
	UrgencyUrgent    = "Urgent"
	UrgencyEmergency = "Emergency"
)

// Analysis sources reported alongside a result.
const (
	SourceModel    = "model"
	SourceFallback = "fallback"
)

// AnalysisResult is the structured assessment returned to the client. The
// JSON field names match what the frontend renders, including the hyphenated
// "possible-reasons".
type AnalysisResult struct {
	DetectedSymptoms FlexibleText `json:"detectedSymptoms"`
	HospitalType     string       `json:"hospitalType"`
	PossibleReasons  StringList   `json:"possible-reasons"`
	DietPlan         StringList   `json:"dietPlan"`
	Severity         string       `json:"severity"`
	Urgency          string       `json:"urgency"`

	// Source is "model" or "fallback". Not part of the body.
	Source string `json:"-"`
}

// Normalize constrains enum-like fields to their accepted values. Unknown
// hospital types collapse to the general type; severity and urgency are
// matched case-insensitively and default to the lowest level.
func (r *AnalysisResult) Normalize() {
	r.HospitalType = matchFold(r.HospitalType, HospitalTypes, HospitalTypeGeneral)
	r.Severity = matchFold(r.Severity, []string{SeverityLow, SeverityMedium, SeverityHigh}, SeverityLow)
	r.Urgency = matchFold(r.Urgency, []string{UrgencyRoutine, UrgencyUrgent, UrgencyEmergency}, UrgencyRoutine)
	if r.PossibleReasons == nil {
		r.PossibleReasons = StringList{}
	}
	if r.DietPlan == nil {
		r.DietPlan = StringList{}
	}
}

func matchFold(value string, allowed []string, fallback string) string {
	value = strings.TrimSpace(value)
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return a
		}
	}
	return fallback
}

// Attachment is binary content forwarded to the model as inline data.
type Attachment struct {
	MIMEType string
	Data     []byte
}

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	Symptoms string `json:"symptoms"`
}

// StringList decodes either a JSON array of strings or a single string.
// Models are inconsistent about bullet fields, so both are accepted.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*l = many
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return fmt.Errorf("expected string or array of strings: %w", err)
	}
	if one == "" {
		*l = StringList{}
		return nil
	}
	*l = StringList{one}
	return nil
}

// FlexibleText decodes a JSON string, or an array of strings joined with
// "; ". Any other JSON value is kept verbatim.
type FlexibleText string

func (t *FlexibleText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = FlexibleText(s)
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*t = FlexibleText(strings.Join(many, "; "))
		return nil
	}
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON for text field")
	}
	*t = FlexibleText(strings.TrimSpace(string(data)))
	return nil
}
