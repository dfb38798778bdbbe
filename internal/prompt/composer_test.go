package prompt

import (
	"strings"
	"testing"

	"github.com/replyflow/replyflow/internal/models"
)

func TestComposeSectionOrder(t *testing.T) {
	out := Compose(Input{
		Persona:         "You are Clara, the shop assistant.",
		BotName:         "Clara",
		StrictGrounding: true,
		Tone:            "professional",
		ResponseLength:  "concise",
		Language:        "Spanish",
		BusinessContext: "We sell bikes.",
		FAQ:             "Q: hours? A: 9-18.",
		Knowledge: []models.KnowledgeDoc{
			{Filename: "prices.txt", Text: "city bike: 400", Enabled: true},
		},
	})

	ordered := []string{
		"You are Clara, the shop assistant.",
		"Answer ONLY using the business information",
		"professional",
		"very short",
		"Always respond in Spanish.",
		"Business information:\nWe sell bikes.",
		"Frequently asked questions:\nQ: hours? A: 9-18.",
		"Knowledge document (prices.txt):\ncity bike: 400",
	}
	pos := -1
	for _, section := range ordered {
		idx := strings.Index(out, section)
		if idx < 0 {
			t.Fatalf("missing section %q in composed prompt:\n%s", section, out)
		}
		if idx < pos {
			t.Errorf("section %q out of order", section)
		}
		pos = idx
	}
}

func TestComposeStrictGroundingClauseVerbatim(t *testing.T) {
	out := Compose(Input{Persona: "p", BotName: "Clara", StrictGrounding: true})
	want := `"I'm sorry, Clara doesn't have that information yet. Please contact the team directly."`
	if !strings.Contains(out, want) {
		t.Errorf("expected verbatim refusal sentence, got:\n%s", out)
	}

	// Without a bot name the clause still reads sensibly.
	out = Compose(Input{Persona: "p", StrictGrounding: true})
	if !strings.Contains(out, "the assistant doesn't have that information yet") {
		t.Errorf("expected fallback bot name in clause, got:\n%s", out)
	}
}

func TestComposeOmitsStrictGroundingWhenDisabled(t *testing.T) {
	out := Compose(Input{Persona: "p", BotName: "Clara"})
	if strings.Contains(out, "Answer ONLY") {
		t.Error("grounding clause must be absent when disabled")
	}
}

func TestComposeUnknownToneFallsBackToRawValue(t *testing.T) {
	out := Compose(Input{Persona: "p", Tone: "sarcastic"})
	if !strings.Contains(out, "Adopt a sarcastic tone.") {
		t.Errorf("expected raw tone fallback, got:\n%s", out)
	}
}

func TestComposeAutoLanguageOmitted(t *testing.T) {
	for _, lang := range []string{"auto", "AUTO", ""} {
		out := Compose(Input{Persona: "p", Language: lang})
		if strings.Contains(out, "Always respond in") {
			t.Errorf("language %q must not emit a directive", lang)
		}
	}
}

func TestComposeSkipsDisabledKnowledge(t *testing.T) {
	out := Compose(Input{
		Persona: "p",
		Knowledge: []models.KnowledgeDoc{
			{Filename: "on.txt", Text: "included", Enabled: true},
			{Filename: "off.txt", Text: "excluded", Enabled: false},
		},
	})
	if !strings.Contains(out, "included") {
		t.Error("enabled knowledge must be folded in")
	}
	if strings.Contains(out, "excluded") {
		t.Error("disabled knowledge must be skipped")
	}
}

func TestComposeCapsKnowledgeText(t *testing.T) {
	long := strings.Repeat("a", models.KnowledgeFragmentBudget+100)
	out := Compose(Input{
		Persona:   "p",
		Knowledge: []models.KnowledgeDoc{{Filename: "big.txt", Text: long, Enabled: true}},
	})
	if strings.Contains(out, long) {
		t.Error("knowledge text must be capped at the fragment budget")
	}
	if !strings.Contains(out, strings.Repeat("a", models.KnowledgeFragmentBudget)) {
		t.Error("capped knowledge text must keep the leading budgeted prefix")
	}
}

func TestComposeBlankSectionsOmitted(t *testing.T) {
	out := Compose(Input{Persona: "Just the persona.", BusinessContext: "  ", FAQ: "\n"})
	if out != "Just the persona." {
		t.Errorf("blank sections must be omitted entirely, got:\n%q", out)
	}
}
