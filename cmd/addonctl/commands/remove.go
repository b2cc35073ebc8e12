package commands

import (
	"github.com/spf13/cobra"

	"github.com/addonctl/addonctl/cmd/addonctl/handlers"
)

// Remove returns the command for removing the configured add-ons.
//
// Remove deletes resources in reverse dependency order: chart releases and
// cluster objects first, cloud identity last. Service-linked roles are
// retained, since the cloud provider owns their lifecycle.
func Remove() *cobra.Command {
	var opts handlers.RunOptions

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove the configured add-ons",
		Long: `Remove the configured add-ons and their cloud resources.

Resources are deleted in reverse dependency order. Already-absent resources
are treated as success, so remove can be rerun after a partial failure.

Examples:
  # Remove everything in addons.yaml
  addonctl remove

  # Remove using a specific config file
  addonctl remove -c production.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Remove(cmd.Context(), opts)
		},
	}

	runFlags(cmd, &opts)

	return cmd
}
