package wizard

import (
	"strings"

	"github.com/addonctl/addonctl/internal/config"
)

// BuildConfig creates a Config from the wizard result. Answers are trimmed,
// add-on order follows the wizard table so generated files are stable.
func BuildConfig(result *Result) *config.Config {
	cfg := &config.Config{
		Cluster: config.ClusterConfig{
			Name:      strings.TrimSpace(result.ClusterName),
			Region:    result.Region,
			AccountID: strings.TrimSpace(result.AccountID),
			Namespace: strings.TrimSpace(result.Namespace),
		},
		Concurrency: result.Concurrency,
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 1
	}

	enabled := make(map[string]bool, len(result.EnabledAddons))
	for _, key := range result.EnabledAddons {
		enabled[key] = true
	}
	for _, a := range Addons {
		if enabled[a.Key] {
			cfg.Addons = append(cfg.Addons, config.AddonConfig{Name: a.Key})
		}
	}

	if result.UploadReports {
		cfg.Report = config.ReportConfig{
			Bucket: strings.TrimSpace(result.ReportBucket),
			Prefix: strings.TrimSpace(result.ReportPrefix),
		}
	}

	return cfg
}
