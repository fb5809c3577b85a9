package analysis

import (
	"strings"

	"healthassist/internal/models"
)

const promptHeader = `You are a medical AI assistant. Analyze the following symptoms and provide a structured response in JSON format.

Based on the symptoms provided, return a JSON object with the following fields:
- detectedSymptoms: extracted symptoms and a clear summary of the symptoms
- hospitalType: The most appropriate type of hospital for Google Maps search. Use ONLY ONE of these exact terms: `

const promptFooter = `
- possible-reasons: Possible medical reasons for these symptoms - array of bullets
- dietPlan: An array of dietary recommendations - array of bullets
- severity: "Low", "Medium", or "High"
- urgency: "Routine", "Urgent", or "Emergency"

IMPORTANT: For hospitalType, use exact spelling and proper names. Do not use typos or variations.

Symptoms: `

// BuildPrompt renders the instruction sent to the model for symptoms.
func BuildPrompt(symptoms string) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	for i, t := range models.HospitalTypes {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(`"` + t + `"`)
	}
	b.WriteString(promptFooter)
	b.WriteString(symptoms)
	return b.String()
}
