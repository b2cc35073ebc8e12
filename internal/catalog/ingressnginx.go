package catalog

import "github.com/addonctl/addonctl/internal/resource"

const ingressNginxDefaultVersion = "4.11.3"

// IngressNginx expands the ingress controller chart plus a default
// IngressClass so workloads can reference it without chart-internal naming.
func IngressNginx(opts Options) []resource.Descriptor {
	ingressClass := `apiVersion: networking.k8s.io/v1
kind: IngressClass
metadata:
  name: nginx
  annotations:
    ingressclass.kubernetes.io/is-default-class: "true"
spec:
  controller: k8s.io/ingress-nginx
`

	class := resource.Descriptor{
		ID:        "ingress-nginx-class",
		Kind:      resource.KindNativeAPIObject,
		DependsOn: provisionerDeps(opts, "ingress-nginx-chart"),
		Object: &resource.ObjectSpec{
			Manifest:   ingressClass,
			APIVersion: "networking.k8s.io/v1",
			ObjectKind: "IngressClass",
			Name:       "nginx",
		},
	}
	if opts.ProvisionerOnly {
		return []resource.Descriptor{class}
	}
	return []resource.Descriptor{
		{
			ID:   "ingress-nginx-chart",
			Kind: resource.KindHelmRelease,
			HelmRelease: &resource.HelmReleaseSpec{
				ReleaseName:     "ingress-nginx",
				Namespace:       opts.namespace(),
				Repository:      "https://kubernetes.github.io/ingress-nginx",
				Chart:           "ingress-nginx",
				Version:         opts.version(ingressNginxDefaultVersion),
				ReadyDeployment: "ingress-nginx-controller",
				Values: mergeValues(map[string]interface{}{
					"controller": map[string]interface{}{
						"ingressClassResource": map[string]interface{}{
							// The class object is managed separately.
							"enabled": false,
						},
					},
				}, opts.Values),
			},
		},
		class,
	}
}
