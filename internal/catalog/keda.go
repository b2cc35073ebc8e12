package catalog

import "github.com/addonctl/addonctl/internal/resource"

const kedaDefaultVersion = "2.15.1"

// KEDA expands the event-driven autoscaler. The chart ships its own CRDs, so
// the graph is the release alone.
func KEDA(opts Options) []resource.Descriptor {
	if opts.ProvisionerOnly {
		// KEDA has no standing provisioner objects; scaled objects belong
		// to the workloads that use them.
		return nil
	}
	return []resource.Descriptor{
		{
			ID:   "keda-chart",
			Kind: resource.KindHelmRelease,
			HelmRelease: &resource.HelmReleaseSpec{
				ReleaseName:     "keda",
				Namespace:       opts.namespace(),
				Repository:      "https://kedacore.github.io/charts",
				Chart:           "keda",
				Version:         opts.version(kedaDefaultVersion),
				Values:          opts.Values,
				ReadyDeployment: "keda-operator",
			},
		},
	}
}
