// Package commands defines all Cobra CLI commands for the calai binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/calai-go/internal/audit"
	"github.com/54b3r/calai-go/internal/config"
	"github.com/54b3r/calai-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "calai",
		Short: "calai — a calendar assistant that cites its evidence",
		Long: `calai is a local-first AI assistant for calendar questions.

It answers questions about your schedule using four calendar tools
(list, details, search, create), grounds policy questions in an ingested
knowledge base, and evaluates every answer for citation integrity before
returning it.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.calai/config.yaml).
See 'calai --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
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

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.calai/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewChatCmd(),
		NewServeCmd(),
		NewToolsCmd(),
		NewIngestCmd(),
		NewVersionCmd(),
	)

	return root
}
