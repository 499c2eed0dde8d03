package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/terracoder/internal/generator"
	"github.com/54b3r/terracoder/internal/logging"
)

// NewGenerateCmd constructs the `terracoder generate` command, which generates
// Terraform HCL files from a natural language description and writes them to
// the specified output directory.
func NewGenerateCmd() *cobra.Command {
	var outDir string
	var providerName string
	var showDiagram bool

	cmd := &cobra.Command{
		Use:   "generate [description]",
		Short: "Generate Terraform code from a natural language description",
		Long: `Generate Terraform HCL files from a natural language description.

The generated configuration is split into appropriately structured .tf files
(main.tf, variables.tf, outputs.tf) and written to the output directory,
along with a summary of the resources and estimated cost.

Examples:
  terracoder generate "EC2 instance with a security group allowing SSH"
  terracoder generate --provider azure --out ./infra "AKS cluster with three node pools"
  terracoder generate --diagram "S3 bucket fronted by CloudFront with an ACM certificate"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			p, err := buildPipeline(ctx, log)
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}
			defer p.close()

			res, err := p.svc.Generate(ctx, generator.Request{
				Description:    args[0],
				Provider:       providerName,
				IncludeDiagram: showDiagram,
			})
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}

			if !res.IsValidRequest {
				return fmt.Errorf("generate: %s", res.Explanation)
			}

			if err := generator.WriteFiles(res.Files, outDir); err != nil {
				return fmt.Errorf("generate: %w", err)
			}

			if res.CachedResponse {
				fmt.Printf("Generated %d file(s) in %s (served from cache):\n", len(res.Files), outDir)
			} else {
				fmt.Printf("Generated %d file(s) in %s:\n", len(res.Files), outDir)
			}
			for _, f := range res.Files {
				fmt.Printf("  %s\n", f.Filename)
			}

			if res.Explanation != "" {
				fmt.Printf("\n%s\n", res.Explanation)
			}
			if len(res.Resources) > 0 {
				fmt.Printf("\nResources: %s\n", strings.Join(res.Resources, ", "))
			}
			if res.EstimatedCost != "" {
				fmt.Printf("Estimated cost: %s\n", res.EstimatedCost)
			}
			if res.FileHierarchy != "" {
				fmt.Printf("\n%s\n", res.FileHierarchy)
			}
			if showDiagram && res.Diagram != nil {
				fmt.Printf("\nArchitecture diagram (mermaid):\n%s\n", res.Diagram.Syntax)
			}

			if issues := res.Diagnostics.ValidationIssues; len(issues) > 0 {
				fmt.Fprintln(os.Stderr, "\nwarning: generated HCL has syntax findings:")
				for _, issue := range issues {
					fmt.Fprintf(os.Stderr, "  - %s\n", issue)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory for generated .tf files")
	cmd.Flags().StringVarP(&providerName, "provider", "p", "", "Target cloud provider: aws, azure, gcp (default aws)")
	cmd.Flags().BoolVar(&showDiagram, "diagram", false, "Print a Mermaid architecture diagram with the summary")

	return cmd
}
