package wizard

import (
	"github.com/charmbracelet/huh"

	"github.com/addonctl/addonctl/internal/catalog"
)

// RegionOption represents a cloud region.
type RegionOption struct {
	Value       string
	Label       string
	Description string
}

// Regions contains the commonly used regions offered by the wizard. Any
// other region can still be set by editing the generated file.
var Regions = []RegionOption{
	{Value: "us-east-1", Label: "us-east-1", Description: "N. Virginia, USA"},
	{Value: "us-west-2", Label: "us-west-2", Description: "Oregon, USA"},
	{Value: "eu-west-1", Label: "eu-west-1", Description: "Ireland"},
	{Value: "eu-central-1", Label: "eu-central-1", Description: "Frankfurt, Germany"},
	{Value: "ap-southeast-1", Label: "ap-southeast-1", Description: "Singapore"},
	{Value: "ap-northeast-1", Label: "ap-northeast-1", Description: "Tokyo, Japan"},
}

// ConcurrencyOptions contains the offered worker limits.
var ConcurrencyOptions = []huh.Option[int]{
	huh.NewOption("1 (Sequential, default)", 1),
	huh.NewOption("2", 2),
	huh.NewOption("4", 4),
	huh.NewOption("8", 8),
}

// AddonOption describes one selectable add-on.
type AddonOption struct {
	Key         string
	Label       string
	Description string
	Default     bool
}

// Addons lists the selectable add-ons with their wizard defaults.
var Addons = []AddonOption{
	{Key: "karpenter", Label: "Karpenter", Description: "Just-in-time node autoscaling", Default: true},
	{Key: "keda", Label: "KEDA", Description: "Event-driven workload autoscaling", Default: false},
	{Key: "ingress-nginx", Label: "Ingress NGINX", Description: "HTTP/HTTPS ingress controller", Default: false},
	{Key: "linkerd", Label: "Linkerd", Description: "Lightweight service mesh", Default: false},
}

// RegionsToOptions converts RegionOption slice to huh.Option slice.
func RegionsToOptions() []huh.Option[string] {
	opts := make([]huh.Option[string], len(Regions))
	for i, r := range Regions {
		opts[i] = huh.NewOption(r.Label+" - "+r.Description, r.Value)
	}
	return opts
}

// AddonsToOptions converts the add-on table to multi-select options,
// pre-selecting the defaults.
func AddonsToOptions() []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(Addons))
	for _, a := range Addons {
		opt := huh.NewOption(a.Label+" - "+a.Description, a.Key)
		if a.Default {
			opt = opt.Selected(true)
		}
		opts = append(opts, opt)
	}
	return opts
}

// supportedAddon reports whether a key is a known catalog entry. The wizard
// table and the catalog are maintained together, so this is a consistency
// check for tests.
func supportedAddon(key string) bool {
	for _, name := range catalog.Names() {
		if name == key {
			return true
		}
	}
	return false
}
