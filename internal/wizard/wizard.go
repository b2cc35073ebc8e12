package wizard

import (
	"context"
	"fmt"
)

// Result holds all the answers from the interactive wizard.
type Result struct {
	// Cluster identity
	ClusterName string
	Region      string
	AccountID   string

	// Add-on selection
	EnabledAddons []string
	Namespace     string

	// Run report upload (optional)
	UploadReports bool
	ReportBucket  string
	ReportPrefix  string

	// Execution
	Concurrency int
}

// RunWizard runs the interactive configuration wizard. The context is used
// for cancellation (Ctrl+C).
func RunWizard(ctx context.Context) (*Result, error) {
	result := &Result{Concurrency: 1}

	if err := runClusterIdentityGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("cluster identity: %w", err)
	}

	if err := runAddonsGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("add-ons: %w", err)
	}

	if err := runReportGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("reports: %w", err)
	}

	if err := runExecutionGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("execution: %w", err)
	}

	return result, nil
}
