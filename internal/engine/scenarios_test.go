package engine

import (
	"context"
	"errors"

	"github.com/aws/smithy-go"
	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/addonctl/addonctl/internal/plan"
	"github.com/addonctl/addonctl/internal/platform"
	"github.com/addonctl/addonctl/internal/reconcile"
	"github.com/addonctl/addonctl/internal/report"
	"github.com/addonctl/addonctl/internal/resource"
)

// End-to-end scenarios over a complete add-on graph: role, policy
// attachment, instance profile, discovery tags, CRDs, chart.
var _ = Describe("Orchestration scenarios", func() {
	var (
		cloud    *platform.FakeCloud
		cluster  *platform.FakeCluster
		deployer *platform.FakeDeployer
		e        *Engine
		p        *plan.Plan
	)

	graph := []resource.Descriptor{
		{
			ID:      "controller-role",
			Kind:    resource.KindIAMRole,
			IAMRole: &resource.IAMRoleSpec{Name: "AddonController", TrustPolicy: testTrustPolicy},
		},
		{
			ID:        "controller-policy",
			Kind:      resource.KindIAMPolicyAttachment,
			DependsOn: []string{"controller-role"},
			PolicyAttachment: &resource.PolicyAttachmentSpec{
				RoleName:  "AddonController",
				PolicyARN: "arn:aws:iam::aws:policy/AddonControllerPolicy",
			},
		},
		{
			ID:              "node-profile",
			Kind:            resource.KindInstanceProfile,
			DependsOn:       []string{"controller-role"},
			InstanceProfile: &resource.InstanceProfileSpec{Name: "AddonNodes", RoleName: "AddonController"},
		},
		{
			ID:   "subnet-tags",
			Kind: resource.KindResourceTag,
			Tag: &resource.TagSpec{
				Key:      "addonctl.io/discovery",
				Value:    "test-cluster",
				Selector: resource.SelectorSubnets,
			},
		},
		{
			ID:     "addon-crds",
			Kind:   resource.KindCRDSet,
			CRDSet: &resource.CRDSetSpec{Manifests: "kind: CustomResourceDefinition", Names: []string{"pools.addon.io"}},
		},
		{
			ID:        "addon-chart",
			Kind:      resource.KindHelmRelease,
			DependsOn: []string{"controller-policy", "node-profile", "addon-crds"},
			HelmRelease: &resource.HelmReleaseSpec{
				ReleaseName: "addon",
				Namespace:   "kube-system",
				Chart:       "addon",
				Version:     "1.2.3",
			},
		},
	}

	BeforeEach(func() {
		cloud = platform.NewFakeCloud()
		cloud.Subnets = []string{"subnet-1", "subnet-2"}
		cluster = platform.NewFakeCluster()
		cluster.OnApply = func(string) { cluster.CRDs["pools.addon.io"] = true }
		cluster.OnDelete = func(string) { delete(cluster.CRDs, "pools.addon.io") }
		deployer = platform.NewFakeDeployer()

		caps := platform.Capabilities{Cloud: cloud, Cluster: cluster, Deployer: deployer}
		rec := reconcile.New(caps, "test-cluster", logr.Discard(), reconcile.WithRetryPolicy(fastRetry))
		e = New(rec, "test-cluster", logr.Discard())

		var err error
		p, err = plan.Build(graph)
		Expect(err).NotTo(HaveOccurred())
	})

	It("installs the whole graph from scratch", func() {
		rep, err := e.Run(context.Background(), ModeInstall, p)
		Expect(err).NotTo(HaveOccurred())
		Expect(rep.Status).To(Equal(report.StatusSuccess))
		Expect(rep.Summarize().Created).To(Equal(6))

		Expect(cloud.Roles).To(HaveKey("AddonController"))
		Expect(cloud.AttachedPolicies["AddonController"]).To(ContainElement("arn:aws:iam::aws:policy/AddonControllerPolicy"))
		Expect(cloud.Profiles).To(HaveKey("AddonNodes"))
		Expect(cloud.Tags["subnet-1"]).To(HaveKeyWithValue("addonctl.io/discovery", "test-cluster"))
		Expect(deployer.Releases).To(HaveKey("kube-system/addon"))
	})

	It("re-running install over a converged environment mutates nothing", func() {
		_, err := e.Run(context.Background(), ModeInstall, p)
		Expect(err).NotTo(HaveOccurred())

		cloud.Calls = nil
		cluster.Applied = nil
		deployer.Installs = nil

		rep, err := e.Run(context.Background(), ModeInstall, p)
		Expect(err).NotTo(HaveOccurred())
		Expect(rep.Status).To(Equal(report.StatusSuccess))
		Expect(rep.Summarize().Skipped).To(Equal(6))
		Expect(cluster.Applied).To(BeEmpty())
		Expect(deployer.Installs).To(BeEmpty())
		for _, call := range cloud.Calls {
			Expect(call).To(BeElementOf("GetRole", "ListAttachedPolicies", "GetInstanceProfile", "DiscoverSubnets", "GetResourceTags"))
		}
	})

	It("repairs drift without touching converged resources", func() {
		_, err := e.Run(context.Background(), ModeInstall, p)
		Expect(err).NotTo(HaveOccurred())

		// Someone rewrote the trust policy out of band.
		cloud.Roles["AddonController"].TrustPolicy = `{"Version":"2012-10-17","Statement":[]}`

		rep, err := e.Run(context.Background(), ModeInstall, p)
		Expect(err).NotTo(HaveOccurred())
		Expect(rep.Status).To(Equal(report.StatusSuccess))

		s := rep.Summarize()
		Expect(s.Updated).To(Equal(1))
		Expect(s.Skipped).To(Equal(5))
		Expect(cloud.Roles["AddonController"].TrustPolicy).To(Equal(testTrustPolicy))
	})

	It("blocks the chart when its role dependency fails permanently", func() {
		cloud.FailWith("CreateRole", &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"})

		rep, err := e.Run(context.Background(), ModeInstall, p)
		Expect(err).NotTo(HaveOccurred())
		Expect(rep.Status).To(Equal(report.StatusPartialFailure))

		byID := map[string]report.Result{}
		for _, res := range rep.Results {
			byID[res.ID] = res
		}
		Expect(byID["controller-role"].Action).To(Equal(report.ActionFailed))
		Expect(byID["controller-policy"].Action).To(Equal(report.ActionSkipped))
		Expect(byID["node-profile"].Action).To(Equal(report.ActionSkipped))
		Expect(byID["addon-chart"].Action).To(Equal(report.ActionSkipped))

		var blocked *reconcile.DependencyBlockedError
		Expect(errors.As(byID["addon-chart"].Err, &blocked)).To(BeTrue())

		// Independent resources still converge.
		Expect(byID["subnet-tags"].Action).To(Equal(report.ActionCreated))
		Expect(byID["addon-crds"].Action).To(Equal(report.ActionCreated))
		Expect(deployer.Releases).To(BeEmpty())
	})

	It("verify reports drift without mutating", func() {
		_, err := e.Run(context.Background(), ModeInstall, p)
		Expect(err).NotTo(HaveOccurred())

		delete(deployer.Releases, "kube-system/addon")

		rep, err := e.Run(context.Background(), ModeVerify, p)
		Expect(err).NotTo(HaveOccurred())
		Expect(rep.Status).To(Equal(report.StatusPartialFailure))

		s := rep.Summarize()
		Expect(s.Failed).To(Equal(1))
		Expect(s.Skipped).To(Equal(5))
		Expect(deployer.Installs).To(HaveLen(1), "verify must not reinstall")
	})

	It("removes everything in reverse and tolerates re-removal", func() {
		_, err := e.Run(context.Background(), ModeInstall, p)
		Expect(err).NotTo(HaveOccurred())

		rep, err := e.Run(context.Background(), ModeRemove, p)
		Expect(err).NotTo(HaveOccurred())
		Expect(rep.Status).To(Equal(report.StatusSuccess))
		Expect(cloud.Roles).To(BeEmpty())
		Expect(deployer.Releases).To(BeEmpty())

		rep, err = e.Run(context.Background(), ModeRemove, p)
		Expect(err).NotTo(HaveOccurred())
		Expect(rep.Status).To(Equal(report.StatusSuccess))
		Expect(rep.Summarize().Skipped).To(Equal(6))
	})
})
