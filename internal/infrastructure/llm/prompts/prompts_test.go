package prompts

import (
	"strings"
	"testing"

	"github.com/finraglab/finrag/internal/core/domain"
)

func TestLoadAllPrompts(t *testing.T) {
	lib, err := Load()
	if err != nil {
		t.Fatalf("load prompts: %v", err)
	}
	for name, tpl := range map[string]*Template{
		"qa": lib.QA, "rerank": lib.Rerank, "eval": lib.Eval, "metadata": lib.Metadata,
	} {
		if tpl == nil {
			t.Fatalf("prompt %s not loaded", name)
		}
	}
}

func TestQARenderProducesSystemAndUser(t *testing.T) {
	lib, err := Load()
	if err != nil {
		t.Fatalf("load prompts: %v", err)
	}
	messages, err := lib.QA.Render(struct {
		Question string
		Context  string
	}{Question: "What was 2018 capex?", Context: "[1] source=3M pages=40-41\ncapex was $1,577M"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected system+user, got %d messages", len(messages))
	}
	if messages[0].Role != domain.RoleSystem {
		t.Fatalf("first message must be system, got %s", messages[0].Role)
	}
	if !strings.Contains(messages[1].Content, "What was 2018 capex?") {
		t.Fatalf("question missing from user message: %q", messages[1].Content)
	}
	if !strings.Contains(messages[1].Content, "capex was $1,577M") {
		t.Fatal("context missing from user message")
	}
}

func TestRenderFailsOnMissingField(t *testing.T) {
	lib, err := Load()
	if err != nil {
		t.Fatalf("load prompts: %v", err)
	}
	if _, err := lib.Eval.Render(struct{ Question string }{Question: "q"}); err == nil {
		t.Fatal("expected error for missing template fields")
	}
}
