package catalog

import "github.com/addonctl/addonctl/internal/resource"

const linkerdDefaultVersion = "2024.9.2"

// Linkerd expands the service mesh as two charts: the CRDs chart first, then
// the control plane depending on it.
func Linkerd(opts Options) []resource.Descriptor {
	if opts.ProvisionerOnly {
		// Mesh membership is opt-in per workload via annotations; there are
		// no standing provisioner objects.
		return nil
	}
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "linkerd"
	}
	version := opts.version(linkerdDefaultVersion)
	return []resource.Descriptor{
		{
			ID:   "linkerd-crds",
			Kind: resource.KindHelmRelease,
			HelmRelease: &resource.HelmReleaseSpec{
				ReleaseName: "linkerd-crds",
				Namespace:   namespace,
				Repository:  "https://helm.linkerd.io/edge",
				Chart:       "linkerd-crds",
				Version:     version,
			},
		},
		{
			ID:        "linkerd-control-plane",
			Kind:      resource.KindHelmRelease,
			DependsOn: []string{"linkerd-crds"},
			HelmRelease: &resource.HelmReleaseSpec{
				ReleaseName:     "linkerd-control-plane",
				Namespace:       namespace,
				Repository:      "https://helm.linkerd.io/edge",
				Chart:           "linkerd-control-plane",
				Version:         version,
				Values:          opts.Values,
				ReadyDeployment: "linkerd-destination",
			},
		},
	}
}
