package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for structural defects. Descriptor-level
// validation happens again at plan build; this catches what the planner
// cannot see, like an empty cluster identity.
func (c *Config) Validate() error {
	var errs []string

	if c.Cluster.Name == "" {
		errs = append(errs, "cluster.name is required")
	}
	if c.Cluster.Region == "" {
		errs = append(errs, "cluster.region is required")
	}
	if c.Concurrency < 0 {
		errs = append(errs, "concurrency must not be negative")
	}

	seen := map[string]bool{}
	for i, addon := range c.Addons {
		if addon.Name == "" {
			errs = append(errs, fmt.Sprintf("addons[%d].name is required", i))
			continue
		}
		if seen[addon.Name] {
			errs = append(errs, fmt.Sprintf("addon %q listed twice", addon.Name))
		}
		seen[addon.Name] = true
	}

	if c.Report.Prefix != "" && c.Report.Bucket == "" {
		errs = append(errs, "report.prefix set without report.bucket")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
