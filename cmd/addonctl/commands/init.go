package commands

import (
	"github.com/spf13/cobra"

	"github.com/addonctl/addonctl/cmd/addonctl/handlers"
)

// Init returns the command for interactively creating a configuration file.
//
// This command guides users through creating an add-on configuration YAML
// file using an interactive wizard with text inputs, single-select, and
// multi-select prompts.
//
// Flags:
//
//	--output, -o: Path to output file (default "addons.yaml")
func Init() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively create an add-on configuration",
		Long: `Interactively create an add-on configuration file.

The wizard asks about:

  - Cluster identity (name, region, account)
  - The add-ons to manage and their namespace
  - Optional run report uploads to object storage
  - Concurrency

The generated YAML can be edited by hand afterwards; per-add-on versions and
chart values are set directly in the file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context(), outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "addons.yaml", "Output file path")

	return cmd
}
