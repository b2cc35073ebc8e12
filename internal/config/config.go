// Package config defines the declarative configuration surface: cluster
// identity, the add-ons to manage, custom resource descriptors, and the
// run-level knobs (concurrency, report archiving).
package config

import (
	"github.com/addonctl/addonctl/internal/resource"
)

// Config is the root of the YAML configuration file.
type Config struct {
	Cluster     ClusterConfig `yaml:"cluster"`
	Addons      []AddonConfig `yaml:"addons,omitempty"`
	// Resources are custom descriptors reconciled alongside the add-on
	// catalogs, in declaration order.
	Resources   []resource.Descriptor `yaml:"resources,omitempty"`
	Report      ReportConfig          `yaml:"report,omitempty"`
	Concurrency int                   `yaml:"concurrency,omitempty"`
}

// ClusterConfig identifies the target cluster and cloud account.
type ClusterConfig struct {
	Name      string `yaml:"name"`
	Region    string `yaml:"region"`
	AccountID string `yaml:"accountId"`
	// Partition is the cloud partition, e.g. "aws" or "aws-us-gov".
	Partition string `yaml:"partition,omitempty"`
	// Namespace is the install namespace for add-on workloads.
	Namespace string `yaml:"namespace,omitempty"`
	// KubeconfigPath overrides the ambient kubeconfig discovery.
	KubeconfigPath string `yaml:"kubeconfig,omitempty"`
}

// AddonConfig selects one built-in add-on catalog and its overrides.
type AddonConfig struct {
	Name      string                 `yaml:"name"`
	Version   string                 `yaml:"version,omitempty"`
	Namespace string                 `yaml:"namespace,omitempty"`
	Values    map[string]interface{} `yaml:"values,omitempty"`
	// ProvisionerOnly installs only the namespace-scoped provisioner
	// objects of the add-on, assuming the controller already runs.
	ProvisionerOnly bool `yaml:"provisionerOnly,omitempty"`
}

// ReportConfig controls archiving of the machine-readable run report.
type ReportConfig struct {
	// Bucket is the object storage bucket reports are uploaded to.
	// Empty disables uploading.
	Bucket string `yaml:"bucket,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`
}

// RunContext is the resolved identity handed to the engine and adapters.
type RunContext struct {
	ClusterName string
	Region      string
	AccountID   string
	Partition   string
	Namespace   string
}

// RunContext resolves the cluster identity with defaults applied.
func (c *Config) RunContext() RunContext {
	partition := c.Cluster.Partition
	if partition == "" {
		partition = "aws"
	}
	namespace := c.Cluster.Namespace
	if namespace == "" {
		namespace = "kube-system"
	}
	return RunContext{
		ClusterName: c.Cluster.Name,
		Region:      c.Cluster.Region,
		AccountID:   c.Cluster.AccountID,
		Partition:   partition,
		Namespace:   namespace,
	}
}
