package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringList_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected StringList
	}{
		{"array", `["a","b"]`, StringList{"a", "b"}},
		{"single string", `"only one"`, StringList{"only one"}},
		{"empty string", `""`, StringList{}},
		{"empty array", `[]`, StringList{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got StringList
			require.NoError(t, json.Unmarshal([]byte(tt.input), &got))
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestStringList_RejectsOtherTypes(t *testing.T) {
	var got StringList
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &got))
}

func TestFlexibleText_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected FlexibleText
	}{
		{"string", `"fever and chills"`, "fever and chills"},
		{"array", `["fever","chills"]`, "fever; chills"},
		{"number kept verbatim", `42`, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got FlexibleText
			require.NoError(t, json.Unmarshal([]byte(tt.input), &got))
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestAnalysisResult_Normalize(t *testing.T) {
	r := AnalysisResult{
		HospitalType: "eye hospital",
		Severity:     " HIGH ",
		Urgency:      "whenever",
	}
	r.Normalize()

	assert.Equal(t, HospitalTypeEye, r.HospitalType)
	assert.Equal(t, SeverityHigh, r.Severity)
	assert.Equal(t, UrgencyRoutine, r.Urgency)
	assert.NotNil(t, r.PossibleReasons)
	assert.NotNil(t, r.DietPlan)
}

func TestAnalysisResult_NormalizeUnknownHospitalType(t *testing.T) {
	r := AnalysisResult{HospitalType: "Veterinary Clinic"}
	r.Normalize()

	assert.Equal(t, HospitalTypeGeneral, r.HospitalType)
	assert.Equal(t, SeverityLow, r.Severity)
}

func TestAnalysisResult_JSONFieldNames(t *testing.T) {
	r := AnalysisResult{
		DetectedSymptoms: "cough",
		PossibleReasons:  StringList{"cold"},
		DietPlan:         StringList{},
		Source:           SourceModel,
	}
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Contains(t, fields, "possible-reasons")
	assert.Contains(t, fields, "detectedSymptoms")
	assert.NotContains(t, fields, "Source")
}
