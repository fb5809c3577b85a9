package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"healthassist/internal/models"
)

// ErrNoJSON means the model answer contained no JSON object.
var ErrNoJSON = errors.New("analysis: no JSON found in response")

// jsonObject matches from the first '{' to the last '}'.
var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

// ParseResult extracts the JSON object from a model answer, which may be
// wrapped in prose or a code fence, and normalizes it.
func ParseResult(text string) (*models.AnalysisResult, error) {
	raw := jsonObject.FindString(text)
	if raw == "" {
		return nil, ErrNoJSON
	}

	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("analysis: invalid JSON in response: %w", err)
	}

	result.Normalize()
	result.Source = models.SourceModel
	return &result, nil
}
