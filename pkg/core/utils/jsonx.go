// Package utils hardens LLM output before it reaches typed code: JSON repair
// for the intent parser and markdown cleanup for the response composer.
package utils

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// RepairJSON attempts to fix common JSON errors in LLM output: markdown code
// fences, single quotes, trailing commas, unclosed brackets, bare keys.
func RepairJSON(malformed string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformed)
	if err != nil {
		return "", fmt.Errorf("json repair failed: %v", err)
	}
	return repaired, nil
}

// DecodeLLMJSON unmarshals an LLM response into schema, escalating through
// three attempts: strict JSON, repaired JSON, then HJSON (which tolerates
// comments and unquoted keys some models emit).
func DecodeLLMJSON(raw string, schema interface{}) error {
	cleaned := StripCodeFences(raw)
	if cleaned == "" {
		return fmt.Errorf("empty response, nothing to decode")
	}

	if err := json.Unmarshal([]byte(cleaned), schema); err == nil {
		return nil
	}

	// The repair stage can reduce garbage to an empty string; that is a
	// failure, not decoded content.
	if repaired, err := RepairJSON(cleaned); err == nil && strings.TrimSpace(repaired) != "" {
		if err := json.Unmarshal([]byte(repaired), schema); err == nil {
			return nil
		}
	}

	if err := hjson.Unmarshal([]byte(cleaned), schema); err == nil {
		return nil
	}

	return fmt.Errorf("response is not decodable JSON: %.120s", cleaned)
}

// StripCodeFences removes a wrapping ```json ... ``` or ``` ... ``` block.
func StripCodeFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	}
	return cleaned
}
