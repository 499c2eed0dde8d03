// Package validate runs static syntax checks over generated Terraform
// sources. Generated code is advisory output that the caller reviews
// before applying, so findings surface as diagnostics on the result
// instead of failing the generation.
package validate

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Check parses src as HCL native syntax and returns one human-readable
// issue per error diagnostic, prefixed with the file name and position.
// A clean parse returns nil.
func Check(name, src string) []string {
	parser := hclparse.NewParser()
	_, diags := parser.ParseHCL([]byte(src), name)
	if !diags.HasErrors() {
		return nil
	}

	var issues []string
	for _, diag := range diags {
		if diag.Severity != hcl.DiagError {
			continue
		}
		issues = append(issues, formatDiag(name, diag))
	}
	return issues
}

func formatDiag(name string, diag *hcl.Diagnostic) string {
	msg := diag.Summary
	if diag.Detail != "" {
		msg = fmt.Sprintf("%s: %s", diag.Summary, diag.Detail)
	}
	// Subject can be nil for diagnostics without a source range.
	if diag.Subject != nil {
		return fmt.Sprintf("%s:%d,%d: %s", name, diag.Subject.Start.Line, diag.Subject.Start.Column, msg)
	}
	return fmt.Sprintf("%s: %s", name, msg)
}
