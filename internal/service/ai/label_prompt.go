package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/labelscan/backend/internal/model/label"
)

// MissingInfoPhrase is the sentence the model must use when the label does not answer a question.
const MissingInfoPhrase = "That information is not available on this label."

const summarySystemPrompt = `You are a friendly nutrition assistant that speaks to shoppers through a voice interface.
You only know what is in the label analysis you are given. Never add facts that are not in it.`

const followUpSystemPrompt = `You are a nutrition assistant answering a shopper's question about one food product.
Answer strictly from the label analysis you are given. Do not guess, and do not use outside knowledge about the brand or product.
If the analysis does not contain what is needed to answer, say so explicitly, starting with: "` + MissingInfoPhrase + `"`

// AnalysisJSON renders the analysis the way it is embedded into prompts.
func AnalysisJSON(analysis *label.Analysis) string {
	if analysis == nil {
		return "{}"
	}
	data, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// BuildSummaryPrompt returns the user instruction for a short spoken digest of the analysis.
func BuildSummaryPrompt(analysis *label.Analysis) string {
	var b strings.Builder
	b.WriteString("Here is the label analysis:\n")
	b.WriteString(AnalysisJSON(analysis))
	b.WriteString("\n\nWrite a spoken summary that takes about 10 to 15 seconds to read aloud. Cover:\n")
	b.WriteString("- the product and its main ingredients\n")
	b.WriteString("- nutritional highlights such as calories, sugar, fat or protein\n")
	b.WriteString("- allergens and dietary flags\n")
	b.WriteString("- certifications, only if the analysis lists any\n")
	b.WriteString("Use plain sentences with no markdown, lists or emojis.")
	return b.String()
}

// BuildFollowUpPrompt returns the user instruction for answering question from the analysis.
func BuildFollowUpPrompt(analysis *label.Analysis, question string) string {
	return fmt.Sprintf(`Here is the label analysis:
%s

Question: %s

Answer in two or three short spoken sentences using only the analysis above.
If the answer is not in the analysis, say "%s" and mention what the label does show that is closest to the question.`,
		AnalysisJSON(analysis), strings.TrimSpace(question), MissingInfoPhrase)
}
