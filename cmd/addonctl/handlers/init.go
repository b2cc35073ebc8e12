package handlers

import (
	"context"
	"fmt"

	"github.com/addonctl/addonctl/internal/wizard"
)

// Factory function variables for init - can be replaced in tests.
var (
	fileExists       = wizard.FileExists
	confirmOverwrite = wizard.ConfirmOverwrite
	runWizard        = wizard.RunWizard
	writeConfig      = wizard.WriteConfig
)

// Init runs the configuration wizard and writes the result to a file.
func Init(ctx context.Context, outputPath string) error {
	if fileExists(outputPath) {
		ok, err := confirmOverwrite(outputPath)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}

	printWelcome()

	result, err := runWizard(ctx)
	if err != nil {
		return fmt.Errorf("wizard canceled: %w", err)
	}

	cfg := wizard.BuildConfig(result)

	if err := writeConfig(cfg, outputPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	printInitSuccess(outputPath, result)

	return nil
}

// printWelcome prints the welcome message.
func printWelcome() {
	fmt.Println()
	fmt.Println("addonctl - cluster add-on management")
	fmt.Println("====================================")
	fmt.Println()
	fmt.Println("This wizard creates an add-on configuration with sensible defaults.")
	fmt.Println("Versions and chart values can be edited in the generated file.")
	fmt.Println()
}

// printInitSuccess prints the success message with summary and next steps.
func printInitSuccess(outputPath string, result *wizard.Result) {
	fmt.Println()
	fmt.Println("Configuration saved!")
	fmt.Println()
	fmt.Printf("  File: %s\n", outputPath)
	fmt.Println()

	fmt.Println("Cluster Summary")
	fmt.Println("---------------")
	fmt.Printf("  Name:    %s\n", result.ClusterName)
	fmt.Printf("  Region:  %s\n", result.Region)
	if len(result.EnabledAddons) > 0 {
		fmt.Printf("  Add-ons: %v\n", result.EnabledAddons)
	}
	if result.UploadReports {
		fmt.Printf("  Reports: s3://%s/%s\n", result.ReportBucket, result.ReportPrefix)
	}
	fmt.Println()

	fmt.Println("Next Steps")
	fmt.Println("----------")
	fmt.Printf("  1. Review %s if needed\n", outputPath)
	fmt.Println()
	fmt.Println("  2. Install the add-ons:")
	fmt.Printf("     addonctl install -c %s\n", outputPath)
	fmt.Println()
	fmt.Println("  3. Verify at any time:")
	fmt.Printf("     addonctl verify -c %s\n", outputPath)
	fmt.Println()
}
