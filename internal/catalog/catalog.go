// Package catalog holds the built-in resource graphs for the supported
// add-ons. Each catalog expands one add-on into the ordered set of cloud and
// cluster resources the orchestrator reconciles.
package catalog

import (
	"fmt"
	"sort"

	"github.com/addonctl/addonctl/internal/config"
	"github.com/addonctl/addonctl/internal/resource"
)

// Options parameterize a catalog expansion.
type Options struct {
	Run       config.RunContext
	Version   string
	Namespace string
	Values    map[string]interface{}
	// ProvisionerOnly restricts the expansion to the namespace-scoped
	// provisioner objects, assuming the controller is already installed.
	ProvisionerOnly bool
}

// namespace returns the target namespace with the run default applied.
func (o Options) namespace() string {
	if o.Namespace != "" {
		return o.Namespace
	}
	return o.Run.Namespace
}

// version returns the requested version or the catalog default.
func (o Options) version(def string) string {
	if o.Version != "" {
		return o.Version
	}
	return def
}

// Builder expands one add-on into descriptors.
type Builder func(Options) []resource.Descriptor

var builders = map[string]Builder{
	"karpenter":     Karpenter,
	"keda":          KEDA,
	"ingress-nginx": IngressNginx,
	"linkerd":       Linkerd,
}

// Names lists the supported add-ons in stable order.
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Expand builds the descriptor set for one configured add-on.
func Expand(addon config.AddonConfig, run config.RunContext) ([]resource.Descriptor, error) {
	builder, ok := builders[addon.Name]
	if !ok {
		return nil, fmt.Errorf("unknown add-on %q (supported: %v)", addon.Name, Names())
	}
	return builder(Options{
		Run:             run,
		Version:         addon.Version,
		Namespace:       addon.Namespace,
		Values:          addon.Values,
		ProvisionerOnly: addon.ProvisionerOnly,
	}), nil
}

// ExpandAll builds the descriptor sets for every configured add-on plus the
// custom resources, preserving configuration order.
func ExpandAll(cfg *config.Config) ([]resource.Descriptor, error) {
	var out []resource.Descriptor
	run := cfg.RunContext()
	for _, addon := range cfg.Addons {
		descriptors, err := Expand(addon, run)
		if err != nil {
			return nil, err
		}
		out = append(out, descriptors...)
	}
	out = append(out, cfg.Resources...)
	return out, nil
}
