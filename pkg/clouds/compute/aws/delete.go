package aws

import (
	"context"
	"errors"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
)

// isAWSNotFound matches the "*.NotFound" error-code family EC2 raises
// for resources deleted out from under a describe/delete pair.
func isAWSNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return strings.Contains(apiErr.ErrorCode(), "NotFound")
}

func (p *Provider) DeleteNetworkByName(ctx context.Context, name string) error {
	out, err := p.ec2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{Filters: nameFilter(name)})
	if err != nil || len(out.Subnets) == 0 {
		return err
	}
	subnet := out.Subnets[0]
	if _, err := p.ec2.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: subnet.SubnetId}); err != nil && !isAWSNotFound(err) {
		return err
	}
	// The VPC carries the same Name tag as the subnet it was created with.
	vpcs, err := p.ec2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{Filters: nameFilter(name)})
	if err != nil || len(vpcs.Vpcs) == 0 {
		return err
	}
	if _, err := p.ec2.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: vpcs.Vpcs[0].VpcId}); err != nil && !isAWSNotFound(err) {
		return err
	}
	return nil
}

func (p *Provider) DeleteFirewallByName(ctx context.Context, name string) error {
	out, err := p.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{{Name: awssdk.String("group-name"), Values: []string{name}}},
	})
	if err != nil || len(out.SecurityGroups) == 0 {
		return err
	}
	if _, err := p.ec2.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: out.SecurityGroups[0].GroupId}); err != nil && !isAWSNotFound(err) {
		return err
	}
	return nil
}

func (p *Provider) DeleteVolumeByName(ctx context.Context, name string) error {
	out, err := p.ec2.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{Filters: nameFilter(name)})
	if err != nil || len(out.Volumes) == 0 {
		return err
	}
	vol := out.Volumes[0]
	if len(vol.Attachments) > 0 {
		_, _ = p.ec2.DetachVolume(ctx, &ec2.DetachVolumeInput{VolumeId: vol.VolumeId, Force: awssdk.Bool(true)})
	}
	if _, err := p.ec2.DeleteVolume(ctx, &ec2.DeleteVolumeInput{VolumeId: vol.VolumeId}); err != nil && !isAWSNotFound(err) {
		return err
	}
	return nil
}
