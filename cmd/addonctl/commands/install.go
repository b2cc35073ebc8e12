package commands

import (
	"github.com/spf13/cobra"

	"github.com/addonctl/addonctl/cmd/addonctl/handlers"
)

// runFlags binds the flags shared by install, verify, and remove.
func runFlags(cmd *cobra.Command, opts *handlers.RunOptions) {
	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file (default: addons.yaml)")
	cmd.Flags().StringVar(&opts.KubeconfigPath, "kubeconfig", "", "Path to kubeconfig (default: config file, then $KUBECONFIG, then ~/.kube/config)")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "Maximum resources reconciled in parallel (default: from config)")
	cmd.Flags().BoolVar(&opts.Plain, "plain", false, "Disable the live progress view")
	cmd.Flags().StringVarP(&opts.ReportPath, "report", "o", "", "Write the JSON run report to this file")
}

// Install returns the command for installing the configured add-ons.
//
// Install reconciles every resource of every configured add-on: cloud roles
// and tags, CRDs, chart releases, and provisioner objects. It is safe to
// rerun; converged resources are skipped.
func Install() *cobra.Command {
	var opts handlers.RunOptions

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install or converge the configured add-ons",
		Long: `Install the configured add-ons and their cloud resources.

Resources that already match their desired state are skipped, drifted
resources are updated, and missing resources are created. Rerunning after a
partial failure completes the remaining work.

Examples:
  # Install using addons.yaml in the current directory
  addonctl install

  # Install using a specific config file
  addonctl install -c production.yaml

  # Archive the machine-readable run report
  addonctl install -o report.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Install(cmd.Context(), opts)
		},
	}

	runFlags(cmd, &opts)

	return cmd
}
