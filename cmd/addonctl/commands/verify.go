package commands

import (
	"github.com/spf13/cobra"

	"github.com/addonctl/addonctl/cmd/addonctl/handlers"
)

// Verify returns the command for checking add-on state without mutating.
//
// Verify probes every resource and reports whether it matches the desired
// state. Nothing is created, updated, or deleted. The exit code is zero only
// when every resource is fully converged.
func Verify() *cobra.Command {
	var opts handlers.RunOptions

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check add-on state without changing anything",
		Long: `Verify that every configured resource matches its desired state.

No resource is mutated. The command exits non-zero if any resource is
missing or drifted, making it suitable for CI and post-install checks.

Examples:
  # Verify the current configuration
  addonctl verify

  # Verify with a JSON report for tooling
  addonctl verify -o verify.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Verify(cmd.Context(), opts)
		},
	}

	runFlags(cmd, &opts)

	return cmd
}
