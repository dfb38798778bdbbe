// Package prompt assembles the system instructions handed to the
// generative backend.
//
// Sections are concatenated in a fixed order with the most specific context
// last, matching the backend's attention bias: persona, grounding clause,
// tone, length, language, business context, FAQ, knowledge documents.
package prompt

import (
	"fmt"
	"strings"

	"github.com/replyflow/replyflow/internal/models"
)

// toneDirectives maps the closed tone vocabulary to instruction phrases.
// Unknown tones fall back to the raw configured value.
var toneDirectives = map[string]string{
	"friendly":     "Keep a warm, friendly, and approachable tone.",
	"professional": "Keep a polite, professional, business-like tone.",
	"technical":    "Use a precise, technical tone and correct terminology.",
	"empathetic":   "Use an understanding, empathetic tone and acknowledge the customer's feelings.",
}

// lengthDirectives maps the response-length vocabulary to instruction phrases.
var lengthDirectives = map[string]string{
	"concise":  "Keep answers very short: one or two sentences whenever possible.",
	"normal":   "Keep answers reasonably brief, a short paragraph at most.",
	"detailed": "Answer thoroughly and include relevant detail when it helps the customer.",
}

// Input carries everything the composer folds into the instruction text.
type Input struct {
	Persona         string
	BotName         string
	StrictGrounding bool
	Tone            string
	ResponseLength  string
	Language        string
	BusinessContext string
	FAQ             string
	Knowledge       []models.KnowledgeDoc
}

// Compose builds the instruction text for the generative backend. Section
// order is significant and fixed.
func Compose(in Input) string {
	var b strings.Builder

	b.WriteString(strings.TrimSpace(in.Persona))

	if in.StrictGrounding {
		writeSection(&b, strictGroundingClause(in.BotName))
	}

	if in.Tone != "" {
		directive, ok := toneDirectives[strings.ToLower(in.Tone)]
		if !ok {
			directive = fmt.Sprintf("Adopt a %s tone.", in.Tone)
		}
		writeSection(&b, directive)
	}

	if in.ResponseLength != "" {
		directive, ok := lengthDirectives[strings.ToLower(in.ResponseLength)]
		if !ok {
			directive = fmt.Sprintf("Keep the response length %s.", in.ResponseLength)
		}
		writeSection(&b, directive)
	}

	if in.Language != "" && !strings.EqualFold(in.Language, "auto") {
		writeSection(&b, fmt.Sprintf("Always respond in %s.", in.Language))
	}

	if strings.TrimSpace(in.BusinessContext) != "" {
		writeSection(&b, "Business information:\n"+strings.TrimSpace(in.BusinessContext))
	}

	if strings.TrimSpace(in.FAQ) != "" {
		writeSection(&b, "Frequently asked questions:\n"+strings.TrimSpace(in.FAQ))
	}

	for _, doc := range in.Knowledge {
		if !doc.Enabled {
			continue
		}
		text := doc.Text
		if len(text) > models.KnowledgeFragmentBudget {
			text = text[:models.KnowledgeFragmentBudget]
		}
		writeSection(&b, fmt.Sprintf("Knowledge document (%s):\n%s", doc.Filename, text))
	}

	return b.String()
}

// strictGroundingClause returns the mandatory grounding instruction. The
// refusal sentence is fixed text the model must emit verbatim, not
// paraphrase.
func strictGroundingClause(botName string) string {
	if botName == "" {
		botName = "the assistant"
	}
	return fmt.Sprintf(
		"Answer ONLY using the business information, FAQ, and knowledge documents provided below. "+
			"If the answer is not covered by that material, reply with exactly this sentence and nothing else: "+
			"\"I'm sorry, %s doesn't have that information yet. Please contact the team directly.\"",
		botName,
	)
}

func writeSection(b *strings.Builder, section string) {
	if b.Len() > 0 {
		b.WriteString("\n\n")
	}
	b.WriteString(section)
}
