package wizard

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/charmbracelet/huh"
)

// clusterNameRegex validates cluster name format: 1-40 lowercase
// alphanumeric with hyphens.
var clusterNameRegex = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,38}[a-z0-9])?$`)

// accountIDRegex validates a 12-digit cloud account id.
var accountIDRegex = regexp.MustCompile(`^[0-9]{12}$`)

// runClusterIdentityGroup prompts for cluster name, region, and account.
func runClusterIdentityGroup(ctx context.Context, result *Result) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Cluster Name").
				Description("1-40 lowercase alphanumeric characters or hyphens").
				Placeholder("my-cluster").
				Value(&result.ClusterName).
				Validate(validateClusterName),
			huh.NewSelect[string]().
				Title("Region").
				Description("Cloud region the cluster runs in").
				Options(RegionsToOptions()...).
				Value(&result.Region),
			huh.NewInput().
				Title("Account ID (Optional)").
				Description("12-digit cloud account id, used for role ARNs in chart values").
				Placeholder("123456789012").
				Value(&result.AccountID).
				Validate(validateAccountID),
		).Title("Cluster Identity"),
	).RunWithContext(ctx)
}

// runAddonsGroup prompts for the add-ons to manage and their namespace.
func runAddonsGroup(ctx context.Context, result *Result) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Add-ons").
				Description("Select the add-ons this configuration manages").
				Options(AddonsToOptions()...).
				Value(&result.EnabledAddons),
			huh.NewInput().
				Title("Namespace (Optional)").
				Description("Target namespace for add-on releases. Empty defaults to kube-system.").
				Placeholder("kube-system").
				Value(&result.Namespace),
		).Title("Add-ons"),
	).RunWithContext(ctx)
}

// runReportGroup prompts for optional report upload settings.
func runReportGroup(ctx context.Context, result *Result) error {
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Upload Run Reports?").
				Description("Store JSON run reports in an object storage bucket").
				Value(&result.UploadReports),
		).Title("Reports"),
	).RunWithContext(ctx)
	if err != nil {
		return err
	}
	if !result.UploadReports {
		return nil
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Bucket").
				Placeholder("my-reports-bucket").
				Value(&result.ReportBucket).
				Validate(requiredField("bucket name is required")),
			huh.NewInput().
				Title("Key Prefix (Optional)").
				Placeholder("addonctl").
				Value(&result.ReportPrefix),
		).Title("Report Storage"),
	).RunWithContext(ctx)
}

// runExecutionGroup prompts for the concurrency limit.
func runExecutionGroup(ctx context.Context, result *Result) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Concurrency").
				Description("Maximum resources reconciled in parallel").
				Options(ConcurrencyOptions...).
				Value(&result.Concurrency),
		).Title("Execution"),
	).RunWithContext(ctx)
}

// validateClusterName validates the cluster name input.
func validateClusterName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errClusterNameRequired
	}
	if !clusterNameRegex.MatchString(name) {
		return errClusterNameInvalid
	}
	return nil
}

// validateAccountID validates the optional account id input.
func validateAccountID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	if !accountIDRegex.MatchString(id) {
		return errAccountIDInvalid
	}
	return nil
}

// requiredField builds a validator rejecting empty input.
func requiredField(msg string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(msg)
		}
		return nil
	}
}
