package label

// NutritionFacts 营养成分表的结构化内容。
type NutritionFacts struct {
	ServingSize    string            `json:"servingSize"`
	Calories       *float64          `json:"calories,omitempty"`
	Macros         map[string]string `json:"macros,omitempty"`
	OtherNutrients map[string]string `json:"otherNutrients,omitempty"`
}

// Analysis 是一次标签识别的结构化结果。
// Error 为 true 时其余字段没有意义。
type Analysis struct {
	ProductName      string             `json:"productName"`
	Ingredients      []string           `json:"ingredients"`
	NutritionFacts   NutritionFacts     `json:"nutritionFacts"`
	Allergens        []string           `json:"allergens"`
	Certifications   []string           `json:"certifications"`
	ExpiryDate       string             `json:"expiryDate"`
	ConfidenceScores map[string]float64 `json:"confidenceScores,omitempty"`
	Error            bool               `json:"error,omitempty"`
	ErrorMessage     string             `json:"errorMessage,omitempty"`
}

// Clone returns a deep copy so stored analyses can't be mutated through shared slices or maps.
func (a *Analysis) Clone() *Analysis {
	if a == nil {
		return nil
	}

	out := *a
	out.Ingredients = cloneStrings(a.Ingredients)
	out.Allergens = cloneStrings(a.Allergens)
	out.Certifications = cloneStrings(a.Certifications)
	out.NutritionFacts.Macros = cloneStringMap(a.NutritionFacts.Macros)
	out.NutritionFacts.OtherNutrients = cloneStringMap(a.NutritionFacts.OtherNutrients)

	if a.NutritionFacts.Calories != nil {
		calories := *a.NutritionFacts.Calories
		out.NutritionFacts.Calories = &calories
	}

	if a.ConfidenceScores != nil {
		out.ConfidenceScores = make(map[string]float64, len(a.ConfidenceScores))
		for k, v := range a.ConfidenceScores {
			out.ConfidenceScores[k] = v
		}
	}

	return &out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
