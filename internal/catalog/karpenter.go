package catalog

import (
	"fmt"

	"github.com/addonctl/addonctl/internal/resource"
)

const karpenterDefaultVersion = "1.0.6"

const ec2TrustPolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Principal": {"Service": "ec2.amazonaws.com"},
      "Action": "sts:AssumeRole"
    }
  ]
}`

// Karpenter expands the node autoscaler into its cloud identity, discovery
// tags, controller chart, and default provisioner objects.
func Karpenter(opts Options) []resource.Descriptor {
	cluster := opts.Run.ClusterName
	nodeRole := fmt.Sprintf("%s-karpenter-node", cluster)
	controllerRole := fmt.Sprintf("%s-karpenter-controller", cluster)
	discoveryTag := resource.TagSpec{
		Key:   "karpenter.sh/discovery",
		Value: cluster,
	}

	nodeClass := fmt.Sprintf(`apiVersion: karpenter.k8s.aws/v1
kind: EC2NodeClass
metadata:
  name: default
spec:
  amiSelectorTerms:
    - alias: al2023@latest
  role: %s
  subnetSelectorTerms:
    - tags:
        karpenter.sh/discovery: %s
  securityGroupSelectorTerms:
    - tags:
        karpenter.sh/discovery: %s
`, nodeRole, cluster, cluster)

	nodePool := `apiVersion: karpenter.sh/v1
kind: NodePool
metadata:
  name: default
spec:
  template:
    spec:
      nodeClassRef:
        group: karpenter.k8s.aws
        kind: EC2NodeClass
        name: default
      requirements:
        - key: kubernetes.io/arch
          operator: In
          values: ["amd64", "arm64"]
        - key: karpenter.sh/capacity-type
          operator: In
          values: ["spot", "on-demand"]
  limits:
    cpu: 256
  disruption:
    consolidationPolicy: WhenEmptyOrUnderutilized
`

	provisioner := []resource.Descriptor{
		{
			ID:        "karpenter-nodeclass",
			Kind:      resource.KindNativeAPIObject,
			DependsOn: provisionerDeps(opts, "karpenter-chart"),
			Object: &resource.ObjectSpec{
				Manifest:   nodeClass,
				APIVersion: "karpenter.k8s.aws/v1",
				ObjectKind: "EC2NodeClass",
				Name:       "default",
			},
		},
		{
			ID:        "karpenter-nodepool",
			Kind:      resource.KindNativeAPIObject,
			DependsOn: []string{"karpenter-nodeclass"},
			Object: &resource.ObjectSpec{
				Manifest:   nodePool,
				APIVersion: "karpenter.sh/v1",
				ObjectKind: "NodePool",
				Name:       "default",
			},
		},
	}
	if opts.ProvisionerOnly {
		return provisioner
	}

	nodePolicies := []string{
		"AmazonEKSWorkerNodePolicy",
		"AmazonEKS_CNI_Policy",
		"AmazonEC2ContainerRegistryReadOnly",
		"AmazonSSMManagedInstanceCore",
	}

	descriptors := []resource.Descriptor{
		{
			ID:   "karpenter-node-role",
			Kind: resource.KindIAMRole,
			IAMRole: &resource.IAMRoleSpec{
				Name:        nodeRole,
				TrustPolicy: ec2TrustPolicy,
				Description: "Karpenter-provisioned node role for " + cluster,
				Tags:        map[string]string{"addonctl.io/cluster": cluster},
			},
		},
		{
			ID:   "karpenter-controller-role",
			Kind: resource.KindIAMRole,
			IAMRole: &resource.IAMRoleSpec{
				Name:        controllerRole,
				TrustPolicy: ec2TrustPolicy,
				Description: "Karpenter controller role for " + cluster,
				Tags:        map[string]string{"addonctl.io/cluster": cluster},
			},
		},
		{
			ID:        "karpenter-instance-profile",
			Kind:      resource.KindInstanceProfile,
			DependsOn: []string{"karpenter-node-role"},
			InstanceProfile: &resource.InstanceProfileSpec{
				Name:     nodeRole,
				RoleName: nodeRole,
			},
		},
		{
			ID:     "karpenter-spot-slr",
			Kind:   resource.KindServiceLinkedRole,
			Policy: resource.CreateOrSkipIfExists,
			ServiceLinkedRole: &resource.ServiceLinkedRoleSpec{
				ServiceName: "spot.amazonaws.com",
			},
		},
		{
			ID:   "karpenter-subnet-tags",
			Kind: resource.KindResourceTag,
			Tag: &resource.TagSpec{
				Key:      discoveryTag.Key,
				Value:    discoveryTag.Value,
				Selector: resource.SelectorSubnets,
			},
		},
		{
			ID:   "karpenter-sg-tags",
			Kind: resource.KindResourceTag,
			Tag: &resource.TagSpec{
				Key:      discoveryTag.Key,
				Value:    discoveryTag.Value,
				Selector: resource.SelectorSecurityGroups,
			},
		},
		{
			ID:   "karpenter-chart",
			Kind: resource.KindHelmRelease,
			DependsOn: []string{
				"karpenter-controller-role",
				"karpenter-instance-profile",
				"karpenter-spot-slr",
			},
			HelmRelease: &resource.HelmReleaseSpec{
				ReleaseName:     "karpenter",
				Namespace:       opts.namespace(),
				Repository:      "oci://public.ecr.aws/karpenter",
				Chart:           "karpenter",
				Version:         opts.version(karpenterDefaultVersion),
				ReadyDeployment: "karpenter",
				Values: mergeValues(map[string]interface{}{
					"settings": map[string]interface{}{
						"clusterName": cluster,
					},
					"serviceAccount": map[string]interface{}{
						"annotations": map[string]interface{}{
							"eks.amazonaws.com/role-arn": roleARN(opts, controllerRole),
						},
					},
				}, opts.Values),
			},
		},
	}
	for _, policy := range nodePolicies {
		descriptors = append(descriptors, resource.Descriptor{
			ID:        "karpenter-node-policy:" + policy,
			Kind:      resource.KindIAMPolicyAttachment,
			DependsOn: []string{"karpenter-node-role"},
			PolicyAttachment: &resource.PolicyAttachmentSpec{
				RoleName:  nodeRole,
				PolicyARN: policyARN(opts, policy),
			},
		})
	}
	return append(descriptors, provisioner...)
}
