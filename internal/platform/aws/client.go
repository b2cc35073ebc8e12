// Package aws adapts the AWS IAM and EC2 APIs to the CloudProvider
// capability interface. Lookups translate NoSuchEntity into (nil, nil) so
// callers never parse provider error strings.
package aws

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/addonctl/addonctl/internal/platform"
)

// Client implements platform.CloudProvider over IAM and EC2.
type Client struct {
	iam *iam.Client
	ec2 *ec2.Client
}

// NewClient creates a client using the default credential chain.
func NewClient(ctx context.Context, region string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &Client{iam: iam.NewFromConfig(cfg), ec2: ec2.NewFromConfig(cfg)}, nil
}

func isNoSuchEntity(err error) bool {
	var nse *iamtypes.NoSuchEntityException
	return errors.As(err, &nse)
}

// GetRole implements platform.CloudProvider.
func (c *Client) GetRole(ctx context.Context, name string) (*platform.Role, error) {
	out, err := c.iam.GetRole(ctx, &iam.GetRoleInput{RoleName: awssdk.String(name)})
	if err != nil {
		if isNoSuchEntity(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get role %s: %w", name, err)
	}
	role := out.Role
	trust, err := decodePolicyDocument(awssdk.ToString(role.AssumeRolePolicyDocument))
	if err != nil {
		return nil, fmt.Errorf("decode trust policy of %s: %w", name, err)
	}
	return &platform.Role{
		Name:        awssdk.ToString(role.RoleName),
		ARN:         awssdk.ToString(role.Arn),
		TrustPolicy: trust,
		Description: awssdk.ToString(role.Description),
		Tags:        iamTagsToMap(role.Tags),
	}, nil
}

// CreateRole implements platform.CloudProvider.
func (c *Client) CreateRole(ctx context.Context, name, trustPolicy, description string, tags map[string]string) error {
	in := &iam.CreateRoleInput{
		RoleName:                 awssdk.String(name),
		AssumeRolePolicyDocument: awssdk.String(trustPolicy),
		Tags:                     mapToIAMTags(tags),
	}
	if description != "" {
		in.Description = awssdk.String(description)
	}
	if _, err := c.iam.CreateRole(ctx, in); err != nil {
		return fmt.Errorf("create role %s: %w", name, err)
	}
	return nil
}

// UpdateRoleTrustPolicy implements platform.CloudProvider.
func (c *Client) UpdateRoleTrustPolicy(ctx context.Context, name, trustPolicy string) error {
	_, err := c.iam.UpdateAssumeRolePolicy(ctx, &iam.UpdateAssumeRolePolicyInput{
		RoleName:       awssdk.String(name),
		PolicyDocument: awssdk.String(trustPolicy),
	})
	if err != nil {
		return fmt.Errorf("update trust policy of %s: %w", name, err)
	}
	return nil
}

// DeleteRole implements platform.CloudProvider.
func (c *Client) DeleteRole(ctx context.Context, name string) error {
	if _, err := c.iam.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: awssdk.String(name)}); err != nil {
		return fmt.Errorf("delete role %s: %w", name, err)
	}
	return nil
}

// ListAttachedPolicies implements platform.CloudProvider. A missing role
// reads as no attachments.
func (c *Client) ListAttachedPolicies(ctx context.Context, roleName string) ([]string, error) {
	var arns []string
	paginator := iam.NewListAttachedRolePoliciesPaginator(c.iam, &iam.ListAttachedRolePoliciesInput{
		RoleName: awssdk.String(roleName),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if isNoSuchEntity(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("list attached policies of %s: %w", roleName, err)
		}
		for _, p := range page.AttachedPolicies {
			arns = append(arns, awssdk.ToString(p.PolicyArn))
		}
	}
	return arns, nil
}

// AttachRolePolicy implements platform.CloudProvider.
func (c *Client) AttachRolePolicy(ctx context.Context, roleName, policyARN string) error {
	_, err := c.iam.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  awssdk.String(roleName),
		PolicyArn: awssdk.String(policyARN),
	})
	if err != nil {
		return fmt.Errorf("attach %s to %s: %w", policyARN, roleName, err)
	}
	return nil
}

// DetachRolePolicy implements platform.CloudProvider.
func (c *Client) DetachRolePolicy(ctx context.Context, roleName, policyARN string) error {
	_, err := c.iam.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
		RoleName:  awssdk.String(roleName),
		PolicyArn: awssdk.String(policyARN),
	})
	if err != nil {
		return fmt.Errorf("detach %s from %s: %w", policyARN, roleName, err)
	}
	return nil
}

// GetInstanceProfile implements platform.CloudProvider.
func (c *Client) GetInstanceProfile(ctx context.Context, name string) (*platform.InstanceProfile, error) {
	out, err := c.iam.GetInstanceProfile(ctx, &iam.GetInstanceProfileInput{
		InstanceProfileName: awssdk.String(name),
	})
	if err != nil {
		if isNoSuchEntity(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get instance profile %s: %w", name, err)
	}
	profile := &platform.InstanceProfile{
		Name: awssdk.ToString(out.InstanceProfile.InstanceProfileName),
		ARN:  awssdk.ToString(out.InstanceProfile.Arn),
	}
	for _, role := range out.InstanceProfile.Roles {
		profile.RoleNames = append(profile.RoleNames, awssdk.ToString(role.RoleName))
	}
	return profile, nil
}

// CreateInstanceProfile implements platform.CloudProvider. The profile and
// its role association are created together; IAM models them as two calls.
func (c *Client) CreateInstanceProfile(ctx context.Context, name, roleName string) error {
	_, err := c.iam.CreateInstanceProfile(ctx, &iam.CreateInstanceProfileInput{
		InstanceProfileName: awssdk.String(name),
	})
	if err != nil {
		var exists *iamtypes.EntityAlreadyExistsException
		if !errors.As(err, &exists) {
			return fmt.Errorf("create instance profile %s: %w", name, err)
		}
	}
	_, err = c.iam.AddRoleToInstanceProfile(ctx, &iam.AddRoleToInstanceProfileInput{
		InstanceProfileName: awssdk.String(name),
		RoleName:            awssdk.String(roleName),
	})
	if err != nil {
		return fmt.Errorf("add role %s to instance profile %s: %w", roleName, name, err)
	}
	return nil
}

// DeleteInstanceProfile implements platform.CloudProvider. Role associations
// are removed first; IAM refuses to delete a profile that still has roles.
func (c *Client) DeleteInstanceProfile(ctx context.Context, name string) error {
	profile, err := c.GetInstanceProfile(ctx, name)
	if err != nil {
		return err
	}
	if profile == nil {
		return nil
	}
	for _, roleName := range profile.RoleNames {
		_, err := c.iam.RemoveRoleFromInstanceProfile(ctx, &iam.RemoveRoleFromInstanceProfileInput{
			InstanceProfileName: awssdk.String(name),
			RoleName:            awssdk.String(roleName),
		})
		if err != nil && !isNoSuchEntity(err) {
			return fmt.Errorf("remove role %s from instance profile %s: %w", roleName, name, err)
		}
	}
	_, err = c.iam.DeleteInstanceProfile(ctx, &iam.DeleteInstanceProfileInput{
		InstanceProfileName: awssdk.String(name),
	})
	if err != nil {
		return fmt.Errorf("delete instance profile %s: %w", name, err)
	}
	return nil
}

// GetServiceLinkedRole implements platform.CloudProvider. Service-linked
// roles live under a per-service path prefix.
func (c *Client) GetServiceLinkedRole(ctx context.Context, serviceName string) (*platform.Role, error) {
	out, err := c.iam.ListRoles(ctx, &iam.ListRolesInput{
		PathPrefix: awssdk.String("/aws-service-role/" + serviceName + "/"),
	})
	if err != nil {
		return nil, fmt.Errorf("list service-linked roles for %s: %w", serviceName, err)
	}
	if len(out.Roles) == 0 {
		return nil, nil
	}
	role := out.Roles[0]
	return &platform.Role{
		Name: awssdk.ToString(role.RoleName),
		ARN:  awssdk.ToString(role.Arn),
	}, nil
}

// CreateServiceLinkedRole implements platform.CloudProvider.
func (c *Client) CreateServiceLinkedRole(ctx context.Context, serviceName string) error {
	_, err := c.iam.CreateServiceLinkedRole(ctx, &iam.CreateServiceLinkedRoleInput{
		AWSServiceName: awssdk.String(serviceName),
	})
	if err != nil {
		return fmt.Errorf("create service-linked role for %s: %w", serviceName, err)
	}
	return nil
}

// GetResourceTags implements platform.CloudProvider.
func (c *Client) GetResourceTags(ctx context.Context, resourceID string) (map[string]string, error) {
	out, err := c.ec2.DescribeTags(ctx, &ec2.DescribeTagsInput{
		Filters: []ec2types.Filter{{
			Name:   awssdk.String("resource-id"),
			Values: []string{resourceID},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("describe tags of %s: %w", resourceID, err)
	}
	tags := map[string]string{}
	for _, t := range out.Tags {
		tags[awssdk.ToString(t.Key)] = awssdk.ToString(t.Value)
	}
	return tags, nil
}

// TagResources implements platform.CloudProvider.
func (c *Client) TagResources(ctx context.Context, resourceIDs []string, key, value string) error {
	if len(resourceIDs) == 0 {
		return nil
	}
	_, err := c.ec2.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: resourceIDs,
		Tags:      []ec2types.Tag{{Key: awssdk.String(key), Value: awssdk.String(value)}},
	})
	if err != nil {
		return fmt.Errorf("tag %d resources with %s: %w", len(resourceIDs), key, err)
	}
	return nil
}

// UntagResources implements platform.CloudProvider.
func (c *Client) UntagResources(ctx context.Context, resourceIDs []string, key string) error {
	if len(resourceIDs) == 0 {
		return nil
	}
	_, err := c.ec2.DeleteTags(ctx, &ec2.DeleteTagsInput{
		Resources: resourceIDs,
		Tags:      []ec2types.Tag{{Key: awssdk.String(key)}},
	})
	if err != nil {
		return fmt.Errorf("untag %d resources of %s: %w", len(resourceIDs), key, err)
	}
	return nil
}

// clusterTagKey is the well-known ownership tag written by cluster
// provisioners onto their network resources.
func clusterTagKey(clusterName string) string {
	return "kubernetes.io/cluster/" + clusterName
}

// DiscoverSubnets implements platform.CloudProvider.
func (c *Client) DiscoverSubnets(ctx context.Context, clusterName string) ([]string, error) {
	var ids []string
	paginator := ec2.NewDescribeSubnetsPaginator(c.ec2, &ec2.DescribeSubnetsInput{
		Filters: []ec2types.Filter{{
			Name:   awssdk.String("tag-key"),
			Values: []string{clusterTagKey(clusterName)},
		}},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("discover subnets of %s: %w", clusterName, err)
		}
		for _, s := range page.Subnets {
			ids = append(ids, awssdk.ToString(s.SubnetId))
		}
	}
	return ids, nil
}

// DiscoverSecurityGroups implements platform.CloudProvider.
func (c *Client) DiscoverSecurityGroups(ctx context.Context, clusterName string) ([]string, error) {
	var ids []string
	paginator := ec2.NewDescribeSecurityGroupsPaginator(c.ec2, &ec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{{
			Name:   awssdk.String("tag-key"),
			Values: []string{clusterTagKey(clusterName)},
		}},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("discover security groups of %s: %w", clusterName, err)
		}
		for _, g := range page.SecurityGroups {
			ids = append(ids, awssdk.ToString(g.GroupId))
		}
	}
	return ids, nil
}

// decodePolicyDocument URL-decodes the policy document form IAM returns.
func decodePolicyDocument(doc string) (string, error) {
	decoded, err := url.QueryUnescape(doc)
	if err != nil {
		return "", err
	}
	return decoded, nil
}

func iamTagsToMap(tags []iamtypes.Tag) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for _, t := range tags {
		out[awssdk.ToString(t.Key)] = awssdk.ToString(t.Value)
	}
	return out
}

func mapToIAMTags(tags map[string]string) []iamtypes.Tag {
	var out []iamtypes.Tag
	for k, v := range tags {
		out = append(out, iamtypes.Tag{Key: awssdk.String(k), Value: awssdk.String(v)})
	}
	return out
}
