package generator

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/terracoder/internal/retrieval"
)

// systemPromptTemplate is the instruction block sent ahead of every
// generation request; %s is the target provider (used twice). The response
// format it dictates is exactly the grammar parser.Parse consumes on the way
// back: one labeled fence per file, then a single JSON metadata block.
const systemPromptTemplate = `You are an expert in Terraform code generation, specifically for the %s cloud provider.
Your task is to generate ONLY the Terraform (.tf) code based on the user's request.
Follow these stringent rules:
- Ensure the generated code is valid Terraform syntax for %s.
- Include all necessary provider and resource blocks.
- Use meaningful comments within the Terraform code for clarity.
- Structure the code into logical files (main.tf, variables.tf, outputs.tf, etc.).
- DO NOT include ANY extra text, explanations, or markdown outside of the code blocks.
- ALWAYS wrap each file in its own fenced code block labeled with the filename.
- ALWAYS finish with a separate JSON metadata block.
- The JSON block MUST contain "explanation" (a summary of the generated configuration), "resources" (a list of the generated resource types), "estimated_cost" (one of "Low", "Medium", "High", or "Varies"), and "file_hierarchy" (a tree-like string showing the project structure).

Return the response in this EXACT format:

` + "```" + `terraform:main.tf
# Main terraform configuration
` + "```" + `

` + "```" + `terraform:variables.tf
# Variable definitions
` + "```" + `

` + "```" + `terraform:outputs.tf
# Output definitions
` + "```" + `

` + "```" + `json
{"explanation": "...", "resources": ["..."], "estimated_cost": "...", "file_hierarchy": "terraform-project/\n├── main.tf\n├── variables.tf\n├── outputs.tf\n└── terraform.tfvars.example"}
` + "```"

// userPrompt phrases the request the way the format examples above assume.
func userPrompt(description, provider string) string {
	return fmt.Sprintf("Generate Terraform code for %s to %s.", provider, description)
}

// referenceContext formats retrieved documentation snippets into a follow-up
// system message. Returns "" when there is nothing to inject.
func referenceContext(snippets []retrieval.Snippet) string {
	if len(snippets) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Relevant Terraform Documentation\n\n")
	b.WriteString("The following documentation excerpts are relevant to the request. " +
		"Prefer the argument names and syntax shown here over anything you remember.\n\n")
	for i, s := range snippets {
		fmt.Fprintf(&b, "### Source %d: %s\n%s\n\n", i+1, s.Source, s.Content)
	}
	return b.String()
}

// buildMessages assembles the ordered message list for one generation call:
// instruction prompt, optional retrieved-documentation context, user request.
func buildMessages(description, provider string, snippets []retrieval.Snippet) []*schema.Message {
	msgs := []*schema.Message{
		schema.SystemMessage(fmt.Sprintf(systemPromptTemplate, provider, provider)),
	}
	if ref := referenceContext(snippets); ref != "" {
		msgs = append(msgs, schema.SystemMessage(ref))
	}
	return append(msgs, schema.UserMessage(userPrompt(description, provider)))
}
