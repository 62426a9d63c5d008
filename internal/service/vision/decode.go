package vision

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/labelscan/backend/internal/model/label"
)

// ErrEmptyResponse is returned by DecodeAnalysis for blank model output.
var ErrEmptyResponse = errors.New("empty model response")

// rawAnalysis mirrors the JSON the extraction prompt asks for. Some models
// answer with a string in "error" or a quoted number for calories, so those
// fields are decoded loosely.
type rawAnalysis struct {
	ProductName    string   `json:"productName"`
	Ingredients    []string `json:"ingredients"`
	NutritionFacts struct {
		ServingSize    string          `json:"servingSize"`
		Calories       json.RawMessage `json:"calories"`
		Macros         map[string]any  `json:"macros"`
		OtherNutrients map[string]any  `json:"otherNutrients"`
	} `json:"nutritionFacts"`
	Allergens        []string           `json:"allergens"`
	Certifications   []string           `json:"certifications"`
	ExpiryDate       string             `json:"expiryDate"`
	ConfidenceScores map[string]float64 `json:"confidenceScores"`
	Error            json.RawMessage    `json:"error"`
	ErrorMessage     string             `json:"errorMessage"`
	Message          string             `json:"message"`
}

// UnwrapCodeFence extracts the JSON payload from a model reply. It takes the text
// between the first opening fence and the last closing fence, so prose around a
// ```json block is dropped. Without a fence the span from the first '{' to the
// last '}' is used when the reply is not already a bare object.
func UnwrapCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)

	if open := strings.Index(trimmed, "```"); open >= 0 {
		body := trimmed[open+3:]
		if idx := strings.Index(body, "\n"); idx >= 0 && !strings.Contains(body[:idx], "{") {
			// 去掉语言标记行，例如 ```json
			body = body[idx+1:]
		} else {
			body = strings.TrimLeftFunc(body, unicode.IsLetter)
		}
		if closing := strings.LastIndex(body, "```"); closing >= 0 {
			body = body[:closing]
		}
		return strings.TrimSpace(body)
	}

	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return trimmed
	}
	first := strings.Index(trimmed, "{")
	last := strings.LastIndex(trimmed, "}")
	if first >= 0 && last > first {
		return trimmed[first : last+1]
	}
	return trimmed
}

// DecodeAnalysis parses model output into an Analysis. The payload must be a
// single JSON object, optionally wrapped in a code fence.
func DecodeAnalysis(content string) (*label.Analysis, error) {
	body := UnwrapCodeFence(content)
	if body == "" {
		return nil, ErrEmptyResponse
	}

	dec := json.NewDecoder(strings.NewReader(body))
	var raw rawAnalysis
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode analysis json: %w", err)
	}
	if dec.More() {
		return nil, errors.New("decode analysis json: trailing data after object")
	}

	analysis := &label.Analysis{
		ProductName:    strings.TrimSpace(raw.ProductName),
		Ingredients:    compact(raw.Ingredients),
		Allergens:      compact(raw.Allergens),
		Certifications: compact(raw.Certifications),
		ExpiryDate:     strings.TrimSpace(raw.ExpiryDate),
		NutritionFacts: label.NutritionFacts{
			ServingSize:    strings.TrimSpace(raw.NutritionFacts.ServingSize),
			Macros:         stringifyValues(raw.NutritionFacts.Macros),
			OtherNutrients: stringifyValues(raw.NutritionFacts.OtherNutrients),
		},
	}

	calories, err := decodeCalories(raw.NutritionFacts.Calories)
	if err != nil {
		return nil, err
	}
	analysis.NutritionFacts.Calories = calories

	if len(raw.ConfidenceScores) > 0 {
		analysis.ConfidenceScores = make(map[string]float64, len(raw.ConfidenceScores))
		for field, score := range raw.ConfidenceScores {
			analysis.ConfidenceScores[field] = clamp01(score)
		}
	}

	flagged, message := decodeErrorField(raw.Error)
	if flagged {
		analysis.Error = true
		analysis.ErrorMessage = firstNonEmpty(message, raw.ErrorMessage, raw.Message, "image is not a readable food label")
	}

	return analysis, nil
}

func decodeCalories(raw json.RawMessage) (*float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return &number, nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return nil, fmt.Errorf("decode calories: unexpected value %s", string(raw))
	}

	text = strings.TrimSpace(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(text)), "kcal"))
	if text == "" {
		return nil, nil
	}
	number, err := strconv.ParseFloat(text, 64)
	if err != nil {
		// 无法识别的热量文本按缺失处理，不影响其余字段
		return nil, nil
	}
	return &number, nil
}

// decodeErrorField accepts true/false, a message string or null.
func decodeErrorField(raw json.RawMessage) (bool, string) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false, ""
	}

	var flag bool
	if err := json.Unmarshal(raw, &flag); err == nil {
		return flag, ""
	}

	var message string
	if err := json.Unmarshal(raw, &message); err == nil {
		message = strings.TrimSpace(message)
		return message != "", message
	}

	return true, ""
}

func stringifyValues(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			out[k] = strings.TrimSpace(val)
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

func compact(items []string) []string {
	if items == nil {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
