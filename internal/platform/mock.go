package platform

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FakeCloud is an in-memory CloudProvider for tests. Error injection works
// by method name: set Errors["GetRole"] to make GetRole fail once per queued
// error.
type FakeCloud struct {
	mu sync.Mutex

	Roles            map[string]*Role
	AttachedPolicies map[string][]string
	Profiles         map[string]*InstanceProfile
	ServiceRoles     map[string]*Role
	Tags             map[string]map[string]string
	Subnets          []string
	SecurityGroups   []string

	// Errors queues per-method errors, consumed one per call.
	Errors map[string][]error
	// Calls records method invocations in order.
	Calls []string
}

// NewFakeCloud creates an empty fake cloud provider.
func NewFakeCloud() *FakeCloud {
	return &FakeCloud{
		Roles:            map[string]*Role{},
		AttachedPolicies: map[string][]string{},
		Profiles:         map[string]*InstanceProfile{},
		ServiceRoles:     map[string]*Role{},
		Tags:             map[string]map[string]string{},
		Errors:           map[string][]error{},
	}
}

// FailWith queues an error for the named method.
func (f *FakeCloud) FailWith(method string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[method] = append(f.Errors[method], errs...)
}

func (f *FakeCloud) record(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, method)
	if queue := f.Errors[method]; len(queue) > 0 {
		err := queue[0]
		f.Errors[method] = queue[1:]
		return err
	}
	return nil
}

// GetRole implements CloudProvider.
func (f *FakeCloud) GetRole(_ context.Context, name string) (*Role, error) {
	if err := f.record("GetRole"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Roles[name], nil
}

// CreateRole implements CloudProvider.
func (f *FakeCloud) CreateRole(_ context.Context, name, trustPolicy, description string, tags map[string]string) error {
	if err := f.record("CreateRole"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Roles[name] = &Role{
		Name:        name,
		ARN:         "arn:aws:iam::000000000000:role/" + name,
		TrustPolicy: trustPolicy,
		Description: description,
		Tags:        tags,
	}
	return nil
}

// UpdateRoleTrustPolicy implements CloudProvider.
func (f *FakeCloud) UpdateRoleTrustPolicy(_ context.Context, name, trustPolicy string) error {
	if err := f.record("UpdateRoleTrustPolicy"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.Roles[name]
	if !ok {
		return fmt.Errorf("role %s not found", name)
	}
	role.TrustPolicy = trustPolicy
	return nil
}

// DeleteRole implements CloudProvider.
func (f *FakeCloud) DeleteRole(_ context.Context, name string) error {
	if err := f.record("DeleteRole"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Roles, name)
	return nil
}

// ListAttachedPolicies implements CloudProvider.
func (f *FakeCloud) ListAttachedPolicies(_ context.Context, roleName string) ([]string, error) {
	if err := f.record("ListAttachedPolicies"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.AttachedPolicies[roleName]...), nil
}

// AttachRolePolicy implements CloudProvider.
func (f *FakeCloud) AttachRolePolicy(_ context.Context, roleName, policyARN string) error {
	if err := f.record("AttachRolePolicy"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AttachedPolicies[roleName] = append(f.AttachedPolicies[roleName], policyARN)
	return nil
}

// DetachRolePolicy implements CloudProvider.
func (f *FakeCloud) DetachRolePolicy(_ context.Context, roleName, policyARN string) error {
	if err := f.record("DetachRolePolicy"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []string
	for _, arn := range f.AttachedPolicies[roleName] {
		if arn != policyARN {
			kept = append(kept, arn)
		}
	}
	f.AttachedPolicies[roleName] = kept
	return nil
}

// GetInstanceProfile implements CloudProvider.
func (f *FakeCloud) GetInstanceProfile(_ context.Context, name string) (*InstanceProfile, error) {
	if err := f.record("GetInstanceProfile"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Profiles[name], nil
}

// CreateInstanceProfile implements CloudProvider.
func (f *FakeCloud) CreateInstanceProfile(_ context.Context, name, roleName string) error {
	if err := f.record("CreateInstanceProfile"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Profiles[name] = &InstanceProfile{Name: name, RoleNames: []string{roleName}}
	return nil
}

// DeleteInstanceProfile implements CloudProvider.
func (f *FakeCloud) DeleteInstanceProfile(_ context.Context, name string) error {
	if err := f.record("DeleteInstanceProfile"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Profiles, name)
	return nil
}

// GetServiceLinkedRole implements CloudProvider.
func (f *FakeCloud) GetServiceLinkedRole(_ context.Context, serviceName string) (*Role, error) {
	if err := f.record("GetServiceLinkedRole"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ServiceRoles[serviceName], nil
}

// CreateServiceLinkedRole implements CloudProvider.
func (f *FakeCloud) CreateServiceLinkedRole(_ context.Context, serviceName string) error {
	if err := f.record("CreateServiceLinkedRole"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ServiceRoles[serviceName] = &Role{Name: "AWSServiceRoleFor" + serviceName}
	return nil
}

// GetResourceTags implements CloudProvider.
func (f *FakeCloud) GetResourceTags(_ context.Context, resourceID string) (map[string]string, error) {
	if err := f.record("GetResourceTags"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	tags := map[string]string{}
	for k, v := range f.Tags[resourceID] {
		tags[k] = v
	}
	return tags, nil
}

// TagResources implements CloudProvider.
func (f *FakeCloud) TagResources(_ context.Context, resourceIDs []string, key, value string) error {
	if err := f.record("TagResources"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range resourceIDs {
		if f.Tags[id] == nil {
			f.Tags[id] = map[string]string{}
		}
		f.Tags[id][key] = value
	}
	return nil
}

// UntagResources implements CloudProvider.
func (f *FakeCloud) UntagResources(_ context.Context, resourceIDs []string, key string) error {
	if err := f.record("UntagResources"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range resourceIDs {
		delete(f.Tags[id], key)
	}
	return nil
}

// DiscoverSubnets implements CloudProvider.
func (f *FakeCloud) DiscoverSubnets(_ context.Context, _ string) ([]string, error) {
	if err := f.record("DiscoverSubnets"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Subnets...), nil
}

// DiscoverSecurityGroups implements CloudProvider.
func (f *FakeCloud) DiscoverSecurityGroups(_ context.Context, _ string) ([]string, error) {
	if err := f.record("DiscoverSecurityGroups"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.SecurityGroups...), nil
}

// FakeCluster is an in-memory ClusterClient for tests. Objects are keyed by
// "apiVersion/kind/namespace/name".
type FakeCluster struct {
	mu sync.Mutex

	Objects     map[string]bool
	CRDs        map[string]bool
	Annotations map[string]string
	Errors      map[string][]error
	Applied     []string
	Deleted     []string

	// OnApply runs after a successful apply with the lock held, so tests
	// can mirror the apply's effect into Objects and CRDs.
	OnApply func(manifests string)
	// OnDelete runs after a successful delete with the lock held.
	OnDelete func(manifests string)
}

// NewFakeCluster creates an empty fake cluster client.
func NewFakeCluster() *FakeCluster {
	return &FakeCluster{
		Objects:     map[string]bool{},
		CRDs:        map[string]bool{},
		Annotations: map[string]string{},
		Errors:      map[string][]error{},
	}
}

// FailWith queues an error for the named method.
func (f *FakeCluster) FailWith(method string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[method] = append(f.Errors[method], errs...)
}

func (f *FakeCluster) takeError(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if queue := f.Errors[method]; len(queue) > 0 {
		err := queue[0]
		f.Errors[method] = queue[1:]
		return err
	}
	return nil
}

// ObjectKey builds the map key used by FakeCluster.
func ObjectKey(apiVersion, kind, namespace, name string) string {
	return fmt.Sprintf("%s/%s/%s/%s", apiVersion, kind, namespace, name)
}

// ApplyManifests implements ClusterClient. The fake does not parse YAML; the
// test seeds Objects/CRDs to reflect the apply's effect, and Applied records
// the manifests for assertions.
func (f *FakeCluster) ApplyManifests(_ context.Context, manifests, _ string) error {
	if err := f.takeError("ApplyManifests"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Applied = append(f.Applied, manifests)
	if f.OnApply != nil {
		f.OnApply(manifests)
	}
	return nil
}

// DeleteManifests implements ClusterClient.
func (f *FakeCluster) DeleteManifests(_ context.Context, manifests string) error {
	if err := f.takeError("DeleteManifests"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deleted = append(f.Deleted, manifests)
	if f.OnDelete != nil {
		f.OnDelete(manifests)
	}
	return nil
}

// ObjectExists implements ClusterClient.
func (f *FakeCluster) ObjectExists(_ context.Context, apiVersion, kind, namespace, name string) (bool, error) {
	if err := f.takeError("ObjectExists"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Objects[ObjectKey(apiVersion, kind, namespace, name)], nil
}

// HasCRD implements ClusterClient.
func (f *FakeCluster) HasCRD(_ context.Context, name string) (bool, error) {
	if err := f.takeError("HasCRD"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CRDs[name], nil
}

// WaitForDeployment implements ClusterClient.
func (f *FakeCluster) WaitForDeployment(_ context.Context, _, _ string, _ time.Duration) error {
	return f.takeError("WaitForDeployment")
}

// GetAnnotation implements ClusterClient.
func (f *FakeCluster) GetAnnotation(_ context.Context, apiVersion, kind, namespace, name, key string) (string, error) {
	if err := f.takeError("GetAnnotation"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Annotations[ObjectKey(apiVersion, kind, namespace, name)+"/"+key], nil
}

// SetAnnotation implements ClusterClient.
func (f *FakeCluster) SetAnnotation(_ context.Context, apiVersion, kind, namespace, name, key, value string) error {
	if err := f.takeError("SetAnnotation"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Annotations[ObjectKey(apiVersion, kind, namespace, name)+"/"+key] = value
	return nil
}

// FakeDeployer is an in-memory PackageDeployer for tests.
type FakeDeployer struct {
	mu sync.Mutex

	Releases map[string]*ReleaseMeta
	Errors   map[string][]error
	Installs []ReleaseSpec
}

// NewFakeDeployer creates an empty fake package deployer.
func NewFakeDeployer() *FakeDeployer {
	return &FakeDeployer{
		Releases: map[string]*ReleaseMeta{},
		Errors:   map[string][]error{},
	}
}

// FailWith queues an error for the named method.
func (f *FakeDeployer) FailWith(method string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[method] = append(f.Errors[method], errs...)
}

func (f *FakeDeployer) takeError(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if queue := f.Errors[method]; len(queue) > 0 {
		err := queue[0]
		f.Errors[method] = queue[1:]
		return err
	}
	return nil
}

func releaseKey(namespace, name string) string {
	return namespace + "/" + name
}

// GetRelease implements PackageDeployer.
func (f *FakeDeployer) GetRelease(_ context.Context, namespace, name string) (*ReleaseMeta, error) {
	if err := f.takeError("GetRelease"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Releases[releaseKey(namespace, name)], nil
}

// InstallOrUpgrade implements PackageDeployer.
func (f *FakeDeployer) InstallOrUpgrade(_ context.Context, spec ReleaseSpec) error {
	if err := f.takeError("InstallOrUpgrade"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Installs = append(f.Installs, spec)
	f.Releases[releaseKey(spec.Namespace, spec.Name)] = &ReleaseMeta{
		Name:      spec.Name,
		Namespace: spec.Namespace,
		Chart:     spec.Chart,
		Version:   spec.Version,
		Values:    spec.Values,
		Status:    "deployed",
	}
	return nil
}

// Uninstall implements PackageDeployer.
func (f *FakeDeployer) Uninstall(_ context.Context, namespace, name string) error {
	if err := f.takeError("Uninstall"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Releases, releaseKey(namespace, name))
	return nil
}
