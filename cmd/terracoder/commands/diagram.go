package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/54b3r/terracoder/internal/diagram"
	"github.com/54b3r/terracoder/internal/logging"
	"github.com/54b3r/terracoder/internal/provider"
)

// NewDiagramCmd constructs the `terracoder diagram` command, which asks the
// model for a Mermaid architecture sketch of a described deployment without
// generating any Terraform code.
func NewDiagramCmd() *cobra.Command {
	var providerName string
	var resources []string

	cmd := &cobra.Command{
		Use:   "diagram [description]",
		Short: "Sketch a Mermaid architecture diagram for a described deployment",
		Long: `Ask the model for a Mermaid flowchart of the described infrastructure.

The sketch is printed to stdout as a Mermaid snippet, ready to paste into any
renderer. If the model reply is unusable, a small static diagram for the
provider is printed instead.

Examples:
  terracoder diagram "three-tier web app with RDS and an ALB"
  terracoder diagram --provider gcp "GKE cluster behind a global load balancer"
  terracoder diagram -r aws_lambda_function -r aws_sqs_queue "queue worker"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			chatModel, err := provider.New(ctx, provider.ConfigFromEnv())
			if err != nil {
				return fmt.Errorf("diagram: failed to initialise model provider: %w", err)
			}

			d, fallback := diagram.Generate(ctx, chatModel, args[0], providerName, resources)
			if fallback {
				fmt.Fprintln(os.Stderr, "warning: model reply was unusable, showing static fallback diagram")
			}

			fmt.Println(d.Syntax)
			return nil
		},
	}

	cmd.Flags().StringVarP(&providerName, "provider", "p", "aws", "Target cloud provider: aws, azure, gcp")
	cmd.Flags().StringArrayVarP(&resources, "resource", "r", nil, "Terraform resource type to include (repeatable)")

	return cmd
}
