// Package reconcile drives one resource from its observed state to its
// desired state. Every pass probes first, mutates only on divergence, and
// confirms the mutation with a fresh probe, so repeated runs over an
// unchanged environment are pure no-ops.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/addonctl/addonctl/internal/platform"
	"github.com/addonctl/addonctl/internal/probe"
	"github.com/addonctl/addonctl/internal/report"
	"github.com/addonctl/addonctl/internal/resource"
	"github.com/addonctl/addonctl/internal/util/retry"
)

// State is the lifecycle position of one resource within a pass.
type State string

const (
	StatePending     State = "pending"
	StateProbing     State = "probing"
	StateReconciling State = "reconciling"
	StateDone        State = "done"
	StateSkipped     State = "skipped"
	StateFailed      State = "failed"
)

// RetryPolicy bounds the retry loops around probes and mutations.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Budget bounds the total wall-clock time spent on one resource pass,
	// shared across its probe, mutate, and confirmation loops. Zero means
	// no budget.
	Budget time.Duration
}

// DefaultRetryPolicy matches the backoff used for cloud and cluster API
// calls elsewhere in the tool.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:  5,
	InitialDelay: time.Second,
	MaxDelay:     30 * time.Second,
	Budget:       2 * time.Minute,
}

const fieldManager = "addonctl"

// Reconciler converges individual resources. It is stateless between calls;
// safe for concurrent use when the underlying adapters are.
type Reconciler struct {
	caps          platform.Capabilities
	prober        *probe.Prober
	clusterName   string
	log           logr.Logger
	policy        RetryPolicy
	deployTimeout time.Duration
	readyTimeout  time.Duration

	// Transition, when set, observes every state change. Used by the
	// engine to feed progress events to the UI.
	Transition func(id string, from, to State)
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(r *Reconciler) { r.policy = p }
}

// WithDeployTimeout bounds package deployments.
func WithDeployTimeout(d time.Duration) Option {
	return func(r *Reconciler) { r.deployTimeout = d }
}

// WithReadyTimeout bounds the post-deploy wait for a release's controller
// deployment.
func WithReadyTimeout(d time.Duration) Option {
	return func(r *Reconciler) { r.readyTimeout = d }
}

// WithTransitionHook registers a state change observer.
func WithTransitionHook(fn func(id string, from, to State)) Option {
	return func(r *Reconciler) { r.Transition = fn }
}

// New creates a reconciler over the given capability set.
func New(caps platform.Capabilities, clusterName string, log logr.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		caps:          caps,
		prober:        probe.New(caps, clusterName),
		clusterName:   clusterName,
		log:           log,
		policy:        DefaultRetryPolicy,
		deployTimeout: 5 * time.Minute,
		readyTimeout:  5 * time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reconciler) transition(id string, state *State, to State) {
	from := *state
	*state = to
	if r.Transition != nil {
		r.Transition(id, from, to)
	}
	r.log.V(1).Info("state change", "id", id, "from", from, "to", to)
}

// passDeadline starts the shared wall-clock budget for one resource pass.
func (r *Reconciler) passDeadline() time.Time {
	if r.policy.Budget <= 0 {
		return time.Time{}
	}
	return time.Now().Add(r.policy.Budget)
}

func (r *Reconciler) retryOpts(deadline time.Time, observer func(int)) []retry.Option {
	var budget time.Duration
	if !deadline.IsZero() {
		budget = time.Until(deadline)
		if budget <= 0 {
			budget = time.Millisecond
		}
	}
	return []retry.Option{
		retry.WithMaxAttempts(r.policy.MaxAttempts),
		retry.WithInitialDelay(r.policy.InitialDelay),
		retry.WithMaxDelay(r.policy.MaxDelay),
		retry.WithBudget(budget),
		retry.WithAttemptObserver(observer),
	}
}

// observe probes with retries. Transient probe errors consume retry
// attempts; the returned attempt count includes every try.
func (r *Reconciler) observe(ctx context.Context, d *resource.Descriptor, deadline time.Time) (probe.Observation, int, error) {
	var obs probe.Observation
	attempts := 0
	err := retry.Do(ctx, func() error {
		obs = r.prober.Probe(ctx, d)
		return classify(obs.Err)
	}, r.retryOpts(deadline, func(n int) { attempts = n })...)
	if err != nil {
		return obs, attempts, &ProbeError{ID: d.ID, Err: err}
	}
	return obs, attempts, nil
}

// Apply converges one resource toward its desired state. The returned
// result's Attempts counts the initial probe's tries plus any extra tries
// the mutation and the confirmation probe needed beyond their first.
func (r *Reconciler) Apply(ctx context.Context, d *resource.Descriptor) report.Result {
	state := StatePending
	deadline := r.passDeadline()
	r.transition(d.ID, &state, StateProbing)

	obs, attempts, err := r.observe(ctx, d, deadline)
	if err != nil {
		r.transition(d.ID, &state, StateFailed)
		return report.Result{ID: d.ID, Action: report.ActionFailed, Attempts: attempts}.WithError(err)
	}

	policy := d.EffectivePolicy()
	switch {
	case obs.Exists && obs.Matches:
		r.transition(d.ID, &state, StateSkipped)
		r.log.Info("in sync", "id", d.ID, "detail", obs.Details)
		return report.Result{ID: d.ID, Action: report.ActionSkipped, Attempts: attempts}

	case obs.Exists && policy == resource.CreateOrFail:
		r.transition(d.ID, &state, StateFailed)
		err := &ReconcileError{ID: d.ID, Permanent: true, Err: fmt.Errorf("resource exists and policy forbids adoption")}
		return report.Result{ID: d.ID, Action: report.ActionFailed, Attempts: attempts}.WithError(err)

	case obs.Exists && policy == resource.CreateOrSkipIfExists:
		r.transition(d.ID, &state, StateSkipped)
		r.log.Info("exists, leaving as is", "id", d.ID, "detail", obs.Details)
		return report.Result{ID: d.ID, Action: report.ActionSkipped, Attempts: attempts}
	}

	r.transition(d.ID, &state, StateReconciling)

	action := report.ActionCreated
	if obs.Exists {
		action = report.ActionUpdated
	}

	raced := false
	mutAttempts := 0
	err = retry.Do(ctx, func() error {
		mErr := r.mutate(ctx, d, obs.Exists)
		if mErr != nil && !obs.Exists && IsAlreadyExists(mErr) {
			raced = true
			return nil
		}
		return classify(mErr)
	}, r.retryOpts(deadline, func(n int) { mutAttempts = n })...)
	attempts += mutAttempts - 1
	if err != nil {
		r.transition(d.ID, &state, StateFailed)
		rErr := &ReconcileError{ID: d.ID, Permanent: IsPermanent(err), Err: err}
		return report.Result{ID: d.ID, Action: report.ActionFailed, Attempts: attempts}.WithError(rErr)
	}
	if raced {
		// Another actor created it between probe and mutate. Re-probe:
		// a matching resource is a skip, a divergent one gets the update
		// pass instead of a doomed confirmation loop.
		r.log.Info("create raced an existing resource", "id", d.ID)
		action = report.ActionSkipped

		var raceAttempts int
		obs, raceAttempts, err = r.observe(ctx, d, deadline)
		attempts += raceAttempts - 1
		if err != nil {
			r.transition(d.ID, &state, StateFailed)
			return report.Result{ID: d.ID, Action: report.ActionFailed, Attempts: attempts}.WithError(err)
		}
		if obs.Exists && !converged(obs, policy) {
			if policy == resource.CreateOrFail {
				r.transition(d.ID, &state, StateFailed)
				rErr := &ReconcileError{ID: d.ID, Permanent: true, Err: fmt.Errorf("resource exists and policy forbids adoption")}
				return report.Result{ID: d.ID, Action: report.ActionFailed, Attempts: attempts}.WithError(rErr)
			}
			action = report.ActionUpdated
			updAttempts := 0
			err = retry.Do(ctx, func() error {
				return classify(r.mutate(ctx, d, true))
			}, r.retryOpts(deadline, func(n int) { updAttempts = n })...)
			attempts += updAttempts - 1
			if err != nil {
				r.transition(d.ID, &state, StateFailed)
				rErr := &ReconcileError{ID: d.ID, Permanent: IsPermanent(err), Err: err}
				return report.Result{ID: d.ID, Action: report.ActionFailed, Attempts: attempts}.WithError(rErr)
			}
		}
	}

	confirmAttempts := 0
	err = retry.Do(ctx, func() error {
		obs = r.prober.Probe(ctx, d)
		if cErr := classify(obs.Err); cErr != nil {
			return cErr
		}
		if !converged(obs, policy) {
			return fmt.Errorf("%s not yet converged: %s", d.ID, obs.Details)
		}
		return nil
	}, r.retryOpts(deadline, func(n int) { confirmAttempts = n })...)
	attempts += confirmAttempts - 1
	if err != nil {
		r.transition(d.ID, &state, StateFailed)
		rErr := &ReconcileError{ID: d.ID, Err: fmt.Errorf("post-change verification: %w", err)}
		return report.Result{ID: d.ID, Action: report.ActionFailed, Attempts: attempts}.WithError(rErr)
	}

	r.transition(d.ID, &state, StateDone)
	r.log.Info("converged", "id", d.ID, "action", action)
	return report.Result{ID: d.ID, Action: action, Attempts: attempts}
}

// converged decides whether an observation satisfies the descriptor's
// policy. CreateOrSkipIfExists only demands presence.
func converged(obs probe.Observation, policy resource.IdempotencyPolicy) bool {
	if policy == resource.CreateOrSkipIfExists {
		return obs.Exists
	}
	return obs.Exists && obs.Matches
}

// Verify probes one resource without mutating and reports whether it is in
// its desired state.
func (r *Reconciler) Verify(ctx context.Context, d *resource.Descriptor) report.Result {
	state := StatePending
	r.transition(d.ID, &state, StateProbing)

	obs, attempts, err := r.observe(ctx, d, r.passDeadline())
	if err != nil {
		r.transition(d.ID, &state, StateFailed)
		return report.Result{ID: d.ID, Action: report.ActionFailed, Attempts: attempts}.WithError(err)
	}
	if !converged(obs, d.EffectivePolicy()) {
		r.transition(d.ID, &state, StateFailed)
		err := &ReconcileError{ID: d.ID, Err: fmt.Errorf("not in desired state: %s", obs.Details)}
		return report.Result{ID: d.ID, Action: report.ActionFailed, Attempts: attempts}.WithError(err)
	}
	r.transition(d.ID, &state, StateSkipped)
	return report.Result{ID: d.ID, Action: report.ActionSkipped, Attempts: attempts}
}

// Delete removes one resource. Absence is success: deleting what is already
// gone reports a skip.
func (r *Reconciler) Delete(ctx context.Context, d *resource.Descriptor) report.Result {
	state := StatePending

	// Service-linked roles are owned by the cloud provider once created and
	// are not removed by this tool.
	if d.Kind == resource.KindServiceLinkedRole {
		r.transition(d.ID, &state, StateSkipped)
		r.log.Info("service-linked role retained", "id", d.ID)
		return report.Result{ID: d.ID, Action: report.ActionSkipped}
	}

	deadline := r.passDeadline()
	r.transition(d.ID, &state, StateProbing)
	obs, attempts, err := r.observe(ctx, d, deadline)
	if err != nil {
		r.transition(d.ID, &state, StateFailed)
		return report.Result{ID: d.ID, Action: report.ActionFailed, Attempts: attempts}.WithError(err)
	}
	if !obs.Exists {
		r.transition(d.ID, &state, StateSkipped)
		return report.Result{ID: d.ID, Action: report.ActionSkipped, Attempts: attempts}
	}

	r.transition(d.ID, &state, StateReconciling)
	mutAttempts := 0
	err = retry.Do(ctx, func() error {
		dErr := r.remove(ctx, d)
		if IsNotFound(dErr) {
			return nil
		}
		return classify(dErr)
	}, r.retryOpts(deadline, func(n int) { mutAttempts = n })...)
	attempts += mutAttempts - 1
	if err != nil {
		r.transition(d.ID, &state, StateFailed)
		rErr := &ReconcileError{ID: d.ID, Permanent: IsPermanent(err), Err: err}
		return report.Result{ID: d.ID, Action: report.ActionFailed, Attempts: attempts}.WithError(rErr)
	}

	r.transition(d.ID, &state, StateDone)
	r.log.Info("removed", "id", d.ID)
	return report.Result{ID: d.ID, Action: report.ActionDeleted, Attempts: attempts}
}

// mutate performs the kind-specific create or update.
func (r *Reconciler) mutate(ctx context.Context, d *resource.Descriptor, exists bool) error {
	switch d.Kind {
	case resource.KindIAMRole:
		spec := d.IAMRole
		if exists {
			return r.caps.Cloud.UpdateRoleTrustPolicy(ctx, spec.Name, spec.TrustPolicy)
		}
		return r.caps.Cloud.CreateRole(ctx, spec.Name, spec.TrustPolicy, spec.Description, spec.Tags)

	case resource.KindIAMPolicyAttachment:
		spec := d.PolicyAttachment
		return r.caps.Cloud.AttachRolePolicy(ctx, spec.RoleName, spec.PolicyARN)

	case resource.KindInstanceProfile:
		spec := d.InstanceProfile
		if exists {
			// The profile exists with the wrong role; recreate it.
			if err := r.caps.Cloud.DeleteInstanceProfile(ctx, spec.Name); err != nil && !IsNotFound(err) {
				return err
			}
		}
		return r.caps.Cloud.CreateInstanceProfile(ctx, spec.Name, spec.RoleName)

	case resource.KindServiceLinkedRole:
		return r.caps.Cloud.CreateServiceLinkedRole(ctx, d.ServiceLinkedRole.ServiceName)

	case resource.KindCRDSet:
		return r.caps.Cluster.ApplyManifests(ctx, d.CRDSet.Manifests, fieldManager)

	case resource.KindHelmRelease:
		spec := d.HelmRelease
		if err := r.caps.Deployer.InstallOrUpgrade(ctx, platform.ReleaseSpec{
			Name:       spec.ReleaseName,
			Namespace:  spec.Namespace,
			Repository: spec.Repository,
			Chart:      spec.Chart,
			Version:    spec.Version,
			Values:     spec.Values,
			Timeout:    r.deployTimeout,
		}); err != nil {
			return err
		}
		if spec.ReadyDeployment != "" {
			return r.caps.Cluster.WaitForDeployment(ctx, spec.Namespace, spec.ReadyDeployment, r.readyTimeout)
		}
		return nil

	case resource.KindNativeAPIObject:
		spec := d.Object
		if err := r.caps.Cluster.ApplyManifests(ctx, spec.Manifest, fieldManager); err != nil {
			return err
		}
		// Stamp the applied revision so the next probe sees a changed
		// manifest as drift.
		return r.caps.Cluster.SetAnnotation(ctx, spec.APIVersion, spec.ObjectKind, spec.Namespace, spec.Name,
			probe.RevisionAnnotation, probe.ManifestRevision(spec.Manifest))

	case resource.KindResourceTag:
		spec := d.Tag
		targets, err := probe.ResolveTagTargets(ctx, r.caps.Cloud, spec, r.clusterName)
		if err != nil {
			return err
		}
		return r.caps.Cloud.TagResources(ctx, targets, spec.Key, spec.Value)

	default:
		return retry.Fatal(fmt.Errorf("no reconciler for kind %q", d.Kind))
	}
}

// remove performs the kind-specific delete.
func (r *Reconciler) remove(ctx context.Context, d *resource.Descriptor) error {
	switch d.Kind {
	case resource.KindIAMRole:
		return r.caps.Cloud.DeleteRole(ctx, d.IAMRole.Name)

	case resource.KindIAMPolicyAttachment:
		spec := d.PolicyAttachment
		return r.caps.Cloud.DetachRolePolicy(ctx, spec.RoleName, spec.PolicyARN)

	case resource.KindInstanceProfile:
		return r.caps.Cloud.DeleteInstanceProfile(ctx, d.InstanceProfile.Name)

	case resource.KindCRDSet:
		return r.caps.Cluster.DeleteManifests(ctx, d.CRDSet.Manifests)

	case resource.KindHelmRelease:
		spec := d.HelmRelease
		return r.caps.Deployer.Uninstall(ctx, spec.Namespace, spec.ReleaseName)

	case resource.KindNativeAPIObject:
		return r.caps.Cluster.DeleteManifests(ctx, d.Object.Manifest)

	case resource.KindResourceTag:
		spec := d.Tag
		targets, err := probe.ResolveTagTargets(ctx, r.caps.Cloud, spec, r.clusterName)
		if err != nil {
			return err
		}
		return r.caps.Cloud.UntagResources(ctx, targets, spec.Key)

	default:
		return retry.Fatal(fmt.Errorf("no reconciler for kind %q", d.Kind))
	}
}
