// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command
// definitions in the commands package. Handlers are framework-agnostic and
// can be tested independently of the CLI framework.
package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-logr/logr"
	crzap "sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/addonctl/addonctl/internal/catalog"
	"github.com/addonctl/addonctl/internal/config"
	"github.com/addonctl/addonctl/internal/engine"
	"github.com/addonctl/addonctl/internal/plan"
	"github.com/addonctl/addonctl/internal/platform"
	"github.com/addonctl/addonctl/internal/platform/aws"
	"github.com/addonctl/addonctl/internal/platform/helmdeploy"
	"github.com/addonctl/addonctl/internal/platform/kube"
	"github.com/addonctl/addonctl/internal/reconcile"
	"github.com/addonctl/addonctl/internal/report"
	"github.com/addonctl/addonctl/internal/resource"
	"github.com/addonctl/addonctl/internal/ui/tui"
)

const defaultConfigFile = "addons.yaml"

// RunOptions carries the flags shared by install, verify, and remove.
type RunOptions struct {
	ConfigPath     string
	KubeconfigPath string
	Concurrency    int
	Plain          bool
	ReportPath     string
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadConfigFile loads the configuration from disk.
	loadConfigFile = config.LoadFile

	// loadTimeouts loads the timeout overrides from the environment.
	loadTimeouts = config.LoadTimeouts

	// newCloudProvider creates the cloud adapter.
	newCloudProvider = func(ctx context.Context, region string) (platform.CloudProvider, error) {
		return aws.NewClient(ctx, region)
	}

	// newClusterClient creates the cluster API adapter.
	newClusterClient = func(kubeconfig []byte) (platform.ClusterClient, error) {
		return kube.NewFromKubeconfig(kubeconfig)
	}

	// newPackageDeployer creates the chart deployer.
	newPackageDeployer = func(kubeconfig []byte) (platform.PackageDeployer, error) {
		return helmdeploy.NewClient(kubeconfig), nil
	}

	// newReportStore creates the object store for report uploads.
	newReportStore = func(ctx context.Context, region string) (report.ObjectStore, error) {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
		if err != nil {
			return nil, fmt.Errorf("loading cloud credentials: %w", err)
		}
		return s3.NewFromConfig(awsCfg), nil
	}

	// readFile reads a file from disk (for testing injection).
	readFile = os.ReadFile

	// notifyContext cancels the run context on an interrupt, so the
	// in-flight resource finishes and the report closes as aborted.
	notifyContext = func(ctx context.Context) (context.Context, context.CancelFunc) {
		return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	}
)

// Install reconciles every configured resource toward its desired state.
func Install(ctx context.Context, opts RunOptions) error {
	return run(ctx, engine.ModeInstall, opts)
}

// Verify probes every configured resource without mutating anything.
func Verify(ctx context.Context, opts RunOptions) error {
	return run(ctx, engine.ModeVerify, opts)
}

// Remove deletes every configured resource in reverse dependency order.
func Remove(ctx context.Context, opts RunOptions) error {
	return run(ctx, engine.ModeRemove, opts)
}

func run(ctx context.Context, mode engine.Mode, opts RunOptions) error {
	ctx, stop := notifyContext(ctx)
	defer stop()

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = defaultConfigFile
	}
	cfg, err := loadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	descriptors, err := catalog.ExpandAll(cfg)
	if err != nil {
		return err
	}
	if len(descriptors) == 0 {
		return fmt.Errorf("nothing to do: no add-ons or resources configured in %s", configPath)
	}

	p, err := plan.Build(descriptors)
	if err != nil {
		return fmt.Errorf("building plan: %w", err)
	}

	caps, err := buildCapabilities(ctx, cfg, descriptors, opts)
	if err != nil {
		return err
	}

	interactive := isInteractiveTTY() && !opts.Plain

	log := logr.Discard()
	if !interactive {
		log = crzap.New(crzap.UseDevMode(false), crzap.WriteTo(os.Stderr))
	}

	rep, err := execute(ctx, mode, cfg, p, caps, opts, log, interactive)
	if err != nil {
		return err
	}

	printSummary(os.Stdout, rep, interactive)

	if opts.ReportPath != "" {
		if err := writeReportFile(rep, opts.ReportPath); err != nil {
			return err
		}
	}
	if cfg.Report.Bucket != "" {
		if err := uploadReport(ctx, cfg, rep); err != nil {
			return err
		}
	}

	if rep.ExitCode() != 0 {
		return fmt.Errorf("%s finished with status %s", mode, rep.Status)
	}
	return nil
}

// execute runs the engine, with or without the live progress view.
func execute(
	ctx context.Context,
	mode engine.Mode,
	cfg *config.Config,
	p *plan.Plan,
	caps platform.Capabilities,
	opts RunOptions,
	log logr.Logger,
	interactive bool,
) (*report.RunReport, error) {
	timeouts := loadTimeouts()
	policy := reconcile.RetryPolicy{
		MaxAttempts:  timeouts.RetryMaxAttempts,
		InitialDelay: timeouts.RetryInitialDelay,
		MaxDelay:     timeouts.RetryMaxDelay,
		Budget:       timeouts.RetryBudget,
	}

	concurrency := cfg.Concurrency
	if opts.Concurrency > 0 {
		concurrency = opts.Concurrency
	}

	runCtx := cfg.RunContext()

	var sink engine.Sink = engine.LogSink{Log: log}
	var channel *engine.ChannelSink
	if interactive {
		channel = engine.NewChannelSink(256)
		sink = channel
	}

	recOpts := []reconcile.Option{
		reconcile.WithRetryPolicy(policy),
		reconcile.WithDeployTimeout(timeouts.Deploy),
		reconcile.WithReadyTimeout(timeouts.DeploymentReady),
	}
	if interactive {
		recOpts = append(recOpts, reconcile.WithTransitionHook(func(id string, _, to reconcile.State) {
			sink.Event(engine.Event{Type: engine.EventResourceState, Mode: mode, ID: id, State: to})
		}))
	}

	rec := reconcile.New(caps, runCtx.ClusterName, log, recOpts...)
	eng := engine.New(rec, runCtx.ClusterName, log,
		engine.WithConcurrency(concurrency),
		engine.WithSink(sink),
	)

	if !interactive {
		return eng.Run(ctx, mode, p)
	}

	ids := p.Order()
	if mode == engine.ModeRemove {
		ids = p.Reversed()
	}

	// The view owns the quit keys in raw mode, so interrupts arrive as
	// keystrokes. Quit cancels this context and the view waits for the
	// run to finish its in-flight resource and finalize the report.
	runnerCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	model := tui.NewRunModel(runCtx.ClusterName, runCtx.Region, mode, ids)
	model.Cancel = cancelRun

	var rep *report.RunReport
	err := tui.RunTUI(model, channel.C, func() error {
		defer close(channel.C)
		var runErr error
		rep, runErr = eng.Run(runnerCtx, mode, p)
		return runErr
	})
	if err != nil {
		return nil, err
	}
	if rep == nil {
		return nil, fmt.Errorf("%s run ended without a report", mode)
	}
	return rep, nil
}

// buildCapabilities constructs only the adapters the descriptor set touches.
func buildCapabilities(ctx context.Context, cfg *config.Config, descriptors []resource.Descriptor, opts RunOptions) (platform.Capabilities, error) {
	var caps platform.Capabilities

	if needsCloud(descriptors) {
		cloud, err := newCloudProvider(ctx, cfg.Cluster.Region)
		if err != nil {
			return caps, fmt.Errorf("creating cloud client: %w", err)
		}
		caps.Cloud = cloud
	}

	if needsCluster(descriptors) {
		kubeconfig, err := resolveKubeconfig(cfg, opts)
		if err != nil {
			return caps, err
		}
		cluster, err := newClusterClient(kubeconfig)
		if err != nil {
			return caps, fmt.Errorf("creating cluster client: %w", err)
		}
		caps.Cluster = cluster

		deployer, err := newPackageDeployer(kubeconfig)
		if err != nil {
			return caps, fmt.Errorf("creating package deployer: %w", err)
		}
		caps.Deployer = deployer
	}

	return caps, nil
}

func needsCloud(descriptors []resource.Descriptor) bool {
	for _, d := range descriptors {
		switch d.Kind {
		case resource.KindIAMRole, resource.KindIAMPolicyAttachment,
			resource.KindInstanceProfile, resource.KindServiceLinkedRole,
			resource.KindResourceTag:
			return true
		}
	}
	return false
}

func needsCluster(descriptors []resource.Descriptor) bool {
	for _, d := range descriptors {
		switch d.Kind {
		case resource.KindCRDSet, resource.KindHelmRelease, resource.KindNativeAPIObject:
			return true
		}
	}
	return false
}

// resolveKubeconfig finds the kubeconfig: the --kubeconfig flag wins, then
// the config file, then $KUBECONFIG, then ~/.kube/config.
func resolveKubeconfig(cfg *config.Config, opts RunOptions) ([]byte, error) {
	path := opts.KubeconfigPath
	if path == "" {
		path = cfg.Cluster.KubeconfigPath
	}
	if path == "" {
		path = os.Getenv("KUBECONFIG")
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating kubeconfig: %w", err)
		}
		path = filepath.Join(home, ".kube", "config")
	}

	kubeconfig, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading kubeconfig %s: %w", path, err)
	}
	return kubeconfig, nil
}

func writeReportFile(rep *report.RunReport, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer f.Close()
	if err := rep.WriteJSON(f); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

func uploadReport(ctx context.Context, cfg *config.Config, rep *report.RunReport) error {
	store, err := newReportStore(ctx, cfg.Cluster.Region)
	if err != nil {
		return err
	}
	uploader := report.NewUploader(store, cfg.Report.Bucket, cfg.Report.Prefix)
	key, err := uploader.Upload(ctx, rep)
	if err != nil {
		return fmt.Errorf("uploading report: %w", err)
	}
	fmt.Printf("Report uploaded to s3://%s/%s\n", cfg.Report.Bucket, key)
	return nil
}
