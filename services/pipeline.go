package services

import (
	"encoding/json"
	"fmt"

	"outfitapi/models"
)

// ParseGeneration runs raw provider text through extraction, decoding, normalization
// and schema validation.
func ParseGeneration(provider, raw string) (*models.GenerationResult, error) {
	payload := ExtractJSON(raw)

	var tree any
	if err := json.Unmarshal([]byte(payload), &tree); err != nil {
		return nil, &ResponseShapeError{Provider: provider, Stage: "decode", Err: fmt.Errorf("%w (payload %q)", err, truncate(payload, 200))}
	}

	result, err := ValidateGeneration(NormalizeResponse(tree))
	if err != nil {
		return nil, &ResponseShapeError{Provider: provider, Stage: "validate", Err: err}
	}
	return result, nil
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "..."
}
