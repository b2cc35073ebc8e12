package helmdeploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/getter"
	"helm.sh/helm/v3/pkg/registry"
	"helm.sh/helm/v3/pkg/release"
	"helm.sh/helm/v3/pkg/repo"
	"helm.sh/helm/v3/pkg/storage/driver"

	"github.com/addonctl/addonctl/internal/platform"
)

const defaultDeployTimeout = 10 * time.Minute

// Client implements platform.PackageDeployer. Release state is stored in
// cluster secrets, one action configuration per target namespace.
type Client struct {
	kubeconfig []byte

	mu      sync.Mutex
	configs map[string]*action.Configuration
}

// NewClient creates a deployer from kubeconfig bytes.
func NewClient(kubeconfig []byte) *Client {
	return &Client{
		kubeconfig: kubeconfig,
		configs:    map[string]*action.Configuration{},
	}
}

func (c *Client) configFor(namespace string) (*action.Configuration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cfg, ok := c.configs[namespace]; ok {
		return cfg, nil
	}

	cfg := new(action.Configuration)
	restGetter := newRESTClientGetter(c.kubeconfig, namespace)
	if err := cfg.Init(restGetter, namespace, "secret", func(format string, v ...interface{}) {}); err != nil {
		return nil, fmt.Errorf("failed to initialize helm action config: %w", err)
	}

	registryClient, err := registry.NewClient(
		registry.ClientOptDebug(false),
		registry.ClientOptWriter(io.Discard),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry client: %w", err)
	}
	cfg.RegistryClient = registryClient

	c.configs[namespace] = cfg
	return cfg, nil
}

// GetRelease implements platform.PackageDeployer.
func (c *Client) GetRelease(_ context.Context, namespace, name string) (*platform.ReleaseMeta, error) {
	cfg, err := c.configFor(namespace)
	if err != nil {
		return nil, err
	}
	getClient := action.NewGet(cfg)
	rel, err := getClient.Run(name)
	if err != nil {
		if errors.Is(err, driver.ErrReleaseNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get release %s/%s: %w", namespace, name, err)
	}
	return releaseMeta(rel), nil
}

func releaseMeta(rel *release.Release) *platform.ReleaseMeta {
	meta := &platform.ReleaseMeta{
		Name:      rel.Name,
		Namespace: rel.Namespace,
		Values:    rel.Config,
	}
	if rel.Chart != nil && rel.Chart.Metadata != nil {
		meta.Chart = rel.Chart.Metadata.Name
		meta.Version = rel.Chart.Metadata.Version
	}
	if rel.Info != nil {
		meta.Status = rel.Info.Status.String()
	}
	return meta
}

// InstallOrUpgrade implements platform.PackageDeployer.
func (c *Client) InstallOrUpgrade(ctx context.Context, spec platform.ReleaseSpec) error {
	cfg, err := c.configFor(spec.Namespace)
	if err != nil {
		return err
	}

	histClient := action.NewHistory(cfg)
	histClient.Max = 1
	_, histErr := histClient.Run(spec.Name)

	if histErr != nil {
		_, err = c.install(ctx, cfg, spec)
	} else {
		_, err = c.upgrade(ctx, cfg, spec)
	}
	if err != nil {
		return fmt.Errorf("deploy release %s/%s: %w", spec.Namespace, spec.Name, err)
	}
	return nil
}

func timeoutOf(spec platform.ReleaseSpec) time.Duration {
	if spec.Timeout > 0 {
		return spec.Timeout
	}
	return defaultDeployTimeout
}

func (c *Client) install(ctx context.Context, cfg *action.Configuration, spec platform.ReleaseSpec) (*release.Release, error) {
	installClient := action.NewInstall(cfg)
	installClient.ReleaseName = spec.Name
	installClient.Namespace = spec.Namespace
	installClient.CreateNamespace = true
	installClient.Version = spec.Version
	installClient.Wait = true
	installClient.Timeout = timeoutOf(spec)

	chrt, err := c.loadChart(installClient.ChartPathOptions, spec)
	if err != nil {
		return nil, fmt.Errorf("failed to load chart: %w", err)
	}
	return installClient.RunWithContext(ctx, chrt, spec.Values)
}

func (c *Client) upgrade(ctx context.Context, cfg *action.Configuration, spec platform.ReleaseSpec) (*release.Release, error) {
	upgradeClient := action.NewUpgrade(cfg)
	upgradeClient.Namespace = spec.Namespace
	upgradeClient.Version = spec.Version
	upgradeClient.Wait = true
	upgradeClient.Timeout = timeoutOf(spec)
	upgradeClient.ReuseValues = false

	chrt, err := c.loadChart(upgradeClient.ChartPathOptions, spec)
	if err != nil {
		return nil, fmt.Errorf("failed to load chart: %w", err)
	}
	return upgradeClient.RunWithContext(ctx, spec.Name, chrt, spec.Values)
}

// loadChart resolves a chart from a classic repository or an OCI registry
// and loads it into memory. The downloaded archive is removed afterwards.
func (c *Client) loadChart(pathOpts action.ChartPathOptions, spec platform.ReleaseSpec) (*chart.Chart, error) {
	settings := cli.New()

	var chartPath string
	var err error
	if strings.HasPrefix(spec.Repository, "oci://") {
		pathOpts.Version = spec.Version
		chartPath, err = pathOpts.LocateChart(spec.Repository+"/"+spec.Chart, settings)
	} else {
		chartPath, err = repo.FindChartInRepoURL(
			spec.Repository,
			spec.Chart,
			spec.Version,
			"", "", "",
			getter.All(settings),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find chart %s in %s: %w", spec.Chart, spec.Repository, err)
	}

	defer func() {
		_ = os.Remove(chartPath)
	}()
	return loader.Load(chartPath)
}

// Uninstall implements platform.PackageDeployer. A missing release is
// success.
func (c *Client) Uninstall(_ context.Context, namespace, name string) error {
	cfg, err := c.configFor(namespace)
	if err != nil {
		return err
	}
	uninstallClient := action.NewUninstall(cfg)
	uninstallClient.Wait = true
	uninstallClient.Timeout = 5 * time.Minute

	if _, err := uninstallClient.Run(name); err != nil {
		if errors.Is(err, driver.ErrReleaseNotFound) {
			return nil
		}
		return fmt.Errorf("uninstall release %s/%s: %w", namespace, name, err)
	}
	return nil
}
