package generator

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/terracoder/internal/retrieval"
)

func TestSystemPromptTemplate(t *testing.T) {
	t.Parallel()

	p := fmt.Sprintf(systemPromptTemplate, "azure", "azure")
	if strings.Contains(p, "%!") {
		t.Fatal("template verb count does not match arguments")
	}
	for _, want := range []string{
		"specifically for the azure cloud provider",
		"valid Terraform syntax for azure",
		"```terraform:main.tf",
		"```terraform:variables.tf",
		"```terraform:outputs.tf",
		"```json",
		`"file_hierarchy"`,
	} {
		if !strings.Contains(p, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}

func TestUserPrompt(t *testing.T) {
	t.Parallel()

	got := userPrompt("create a vpc with two subnets", "aws")
	want := "Generate Terraform code for aws to create a vpc with two subnets."
	if got != want {
		t.Errorf("userPrompt = %q, want %q", got, want)
	}
}

func TestReferenceContext(t *testing.T) {
	t.Parallel()

	if got := referenceContext(nil); got != "" {
		t.Errorf("referenceContext(nil) = %q, want empty", got)
	}

	ctx := referenceContext([]retrieval.Snippet{
		{Content: "first excerpt", Source: "https://example.com/a"},
		{Content: "second excerpt", Source: "https://example.com/b"},
	})
	for _, want := range []string{
		"## Relevant Terraform Documentation",
		"### Source 1: https://example.com/a",
		"first excerpt",
		"### Source 2: https://example.com/b",
		"second excerpt",
	} {
		if !strings.Contains(ctx, want) {
			t.Errorf("reference context missing %q", want)
		}
	}
}

func TestBuildMessages(t *testing.T) {
	t.Parallel()

	plain := buildMessages("deploy a vpc now", "aws", nil)
	if len(plain) != 2 {
		t.Fatalf("got %d messages, want 2", len(plain))
	}
	if plain[0].Role != schema.System || plain[1].Role != schema.User {
		t.Errorf("roles = %s, %s", plain[0].Role, plain[1].Role)
	}

	withCtx := buildMessages("deploy a vpc now", "aws", []retrieval.Snippet{{Content: "c", Source: "s"}})
	if len(withCtx) != 3 {
		t.Fatalf("got %d messages, want 3", len(withCtx))
	}
	if withCtx[1].Role != schema.System {
		t.Errorf("context message role = %s, want system", withCtx[1].Role)
	}
	if withCtx[2].Role != schema.User {
		t.Errorf("final message role = %s, want user", withCtx[2].Role)
	}
}
