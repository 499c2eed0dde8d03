// Package commands defines all Cobra CLI commands for the terracoder binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/54b3r/terracoder/internal/audit"
	"github.com/54b3r/terracoder/internal/config"
	"github.com/54b3r/terracoder/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "terracoder",
		Short: "Terracoder — Terraform code generation powered by LLMs",
		Long: `Terracoder turns natural language descriptions of cloud infrastructure
into ready-to-use Terraform configurations.

It can be used as a one-shot CLI (terracoder generate) or run as an HTTP
service (terracoder serve) exposing a JSON generation API with response
caching, documentation retrieval, and generation history.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.terracoder/config.yaml).
See 'terracoder --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A local .env file is the lowest-precedence config source:
			// it never overrides variables already set in the environment.
			_ = godotenv.Load()

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.terracoder/config.yaml)")

	root.AddCommand(
		NewGenerateCmd(),
		NewServeCmd(),
		NewDiagramCmd(),
		NewIngestCmd(),
		NewVersionCmd(),
	)

	return root
}
