// Package aws implements the compute.Provider contract on top of
// aws-sdk-go-v2: EC2 for servers,
// networks, firewalls and volumes; ELBv2 for load balancers; ACM for
// managed certificates. Grounded on the real AWS SDK rather than a
// Pulumi-style descriptor layer, since the deploy calls direct provider
// APIs, not infrastructure-as-code stacks.
package aws

import (
	"context"
	"fmt"
	"strconv"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/acm"
	acmtypes "github.com/aws/aws-sdk-go-v2/service/acm/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/pkg/errors"

	"github.com/deployctl/deployctl/pkg/clouds/compute"
	"github.com/deployctl/deployctl/pkg/sshclient"
	"github.com/deployctl/deployctl/pkg/waiter"
)

func init() {
	compute.Register("aws", func(cfg compute.ProviderConfig) (compute.Provider, error) {
		ctx := context.Background()
		opts := []func(*config.LoadOptions) error{}
		if cfg.Region != "" {
			opts = append(opts, config.WithRegion(cfg.Region))
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, errors.Wrapf(err, "aws: failed to load credentials")
		}
		return New(awsCfg), nil
	})
}

type Provider struct {
	ec2 *ec2.Client
	elb *elasticloadbalancingv2.Client
	acm *acm.Client
}

func New(cfg awssdk.Config) *Provider {
	return &Provider{
		ec2: ec2.NewFromConfig(cfg),
		elb: elasticloadbalancingv2.NewFromConfig(cfg),
		acm: acm.NewFromConfig(cfg),
	}
}

func (p *Provider) ProviderName() string     { return "aws" }
func (p *Provider) SupportsSelfHosted() bool { return false }
func (p *Provider) VMBased() bool            { return true }

func (p *Provider) ValidateCredentials(ctx context.Context) error {
	_, err := p.ec2.DescribeRegions(ctx, &ec2.DescribeRegionsInput{})
	if err != nil {
		return errors.Wrapf(err, "aws credentials rejected")
	}
	return nil
}

func nameTag(name string) []ec2types.Tag {
	return []ec2types.Tag{{Key: awssdk.String("Name"), Value: awssdk.String(name)}}
}

func findByNameTag(tags []ec2types.Tag) string {
	for _, t := range tags {
		if awssdk.ToString(t.Key) == "Name" {
			return awssdk.ToString(t.Value)
		}
	}
	return ""
}

func nameFilter(name string) []ec2types.Filter {
	return []ec2types.Filter{{Name: awssdk.String("tag:Name"), Values: []string{name}}}
}

func instanceToServer(inst ec2types.Instance) compute.Server {
	server := compute.Server{
		ID:           awssdk.ToString(inst.InstanceId),
		Name:         findByNameTag(inst.Tags),
		InstanceType: string(inst.InstanceType),
		Status:       string(inst.State.Name),
	}
	if inst.PublicIpAddress != nil {
		server.PublicIPv4 = *inst.PublicIpAddress
	}
	if inst.PrivateIpAddress != nil {
		server.PrivateIPv4 = *inst.PrivateIpAddress
	}
	if inst.Placement != nil && inst.Placement.AvailabilityZone != nil {
		server.Location = *inst.Placement.AvailabilityZone
	}
	return server
}

func (p *Provider) ListServers(ctx context.Context) ([]compute.Server, error) {
	out, err := p.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{{Name: awssdk.String("instance-state-name"), Values: []string{"pending", "running", "stopping", "stopped"}}},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "aws: list servers")
	}
	var servers []compute.Server
	for _, res := range out.Reservations {
		for _, inst := range res.Instances {
			servers = append(servers, instanceToServer(inst))
		}
	}
	return servers, nil
}

func (p *Provider) FindServer(ctx context.Context, name string) (*compute.Server, error) {
	out, err := p.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		Filters: append(nameFilter(name), ec2types.Filter{Name: awssdk.String("instance-state-name"), Values: []string{"pending", "running", "stopping", "stopped"}}),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "aws: find server %s", name)
	}
	for _, res := range out.Reservations {
		for _, inst := range res.Instances {
			server := instanceToServer(inst)
			return &server, nil
		}
	}
	return nil, nil
}

func (p *Provider) FindOrCreateServer(ctx context.Context, in compute.CreateServerInput) (*compute.Server, error) {
	if existing, err := p.FindServer(ctx, in.Name); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	input := &ec2.RunInstancesInput{
		ImageId:          awssdk.String(in.Image),
		InstanceType:     ec2types.InstanceType(in.InstanceType),
		MinCount:         awssdk.Int32(1),
		MaxCount:         awssdk.Int32(1),
		UserData:         awssdk.String(in.UserData),
		SecurityGroupIds: in.FirewallIDs,
		TagSpecifications: []ec2types.TagSpecification{
			{ResourceType: ec2types.ResourceTypeInstance, Tags: nameTag(in.Name)},
		},
	}
	if len(in.SshKeyIDs) > 0 {
		input.KeyName = awssdk.String(in.SshKeyIDs[0])
	}
	if len(in.NetworkIDs) > 0 {
		input.SubnetId = awssdk.String(in.NetworkIDs[0])
	}

	out, err := p.ec2.RunInstances(ctx, input)
	if err != nil {
		if isAWSDuplicate(err) {
			return p.FindServer(ctx, in.Name)
		}
		return nil, errors.Wrapf(err, "aws: run instance %s", in.Name)
	}
	if len(out.Instances) == 0 {
		return nil, errors.Errorf("aws: run instance %s returned no instances", in.Name)
	}
	server := instanceToServer(out.Instances[0])
	server.Name = in.Name
	return &server, nil
}

func (p *Provider) DeleteServerByName(ctx context.Context, name string) error {
	server, err := p.FindServer(ctx, name)
	if err != nil {
		return err
	}
	if server == nil {
		return nil
	}
	_, err = p.ec2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{server.ID}})
	if err != nil {
		return errors.Wrapf(err, "aws: terminate instance %s", name)
	}
	return nil
}

func (p *Provider) FindOrCreateNetwork(ctx context.Context, name, location string) (*compute.Network, error) {
	out, err := p.ec2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{Filters: nameFilter(name)})
	if err != nil {
		return nil, errors.Wrapf(err, "aws: describe subnets")
	}
	if len(out.Subnets) > 0 {
		return &compute.Network{ID: awssdk.ToString(out.Subnets[0].SubnetId), Name: name}, nil
	}

	vpcOut, err := p.ec2.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock:         awssdk.String("10.0.0.0/16"),
		TagSpecifications: []ec2types.TagSpecification{{ResourceType: ec2types.ResourceTypeVpc, Tags: nameTag(name)}},
	})
	if err != nil {
		if isAWSDuplicate(err) {
			return p.FindOrCreateNetwork(ctx, name, location)
		}
		return nil, errors.Wrapf(err, "aws: create vpc %s", name)
	}

	subnetOut, err := p.ec2.CreateSubnet(ctx, &ec2.CreateSubnetInput{
		VpcId:             vpcOut.Vpc.VpcId,
		CidrBlock:         awssdk.String("10.0.1.0/24"),
		AvailabilityZone:  awssdk.String(location),
		TagSpecifications: []ec2types.TagSpecification{{ResourceType: ec2types.ResourceTypeSubnet, Tags: nameTag(name)}},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "aws: create subnet for network %s", name)
	}
	return &compute.Network{ID: awssdk.ToString(subnetOut.Subnet.SubnetId), Name: name}, nil
}

func toIPPermissions(rules []compute.FirewallRule) []ec2types.IpPermission {
	perms := make([]ec2types.IpPermission, 0, len(rules))
	for _, r := range rules {
		if r.Direction != "in" {
			continue
		}
		perm := ec2types.IpPermission{IpProtocol: awssdk.String(r.Protocol)}
		if r.Port != "" && r.Port != "any" {
			if port, err := strconv.Atoi(r.Port); err == nil {
				perm.FromPort = awssdk.Int32(int32(port))
				perm.ToPort = awssdk.Int32(int32(port))
			}
		}
		for _, src := range r.SourceIPs {
			perm.IpRanges = append(perm.IpRanges, ec2types.IpRange{CidrIp: awssdk.String(src)})
		}
		if len(perm.IpRanges) == 0 {
			perm.IpRanges = []ec2types.IpRange{{CidrIp: awssdk.String("0.0.0.0/0")}}
		}
		perms = append(perms, perm)
	}
	return perms
}

func (p *Provider) FindOrCreateFirewall(ctx context.Context, name string, rules []compute.FirewallRule) (*compute.Firewall, error) {
	out, err := p.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{Filters: []ec2types.Filter{{Name: awssdk.String("group-name"), Values: []string{name}}}})
	if err != nil {
		return nil, errors.Wrapf(err, "aws: describe security groups")
	}
	var groupID string
	if len(out.SecurityGroups) > 0 {
		groupID = awssdk.ToString(out.SecurityGroups[0].GroupId)
	} else {
		created, err := p.ec2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
			GroupName:   awssdk.String(name),
			Description: awssdk.String("deployctl: " + name),
		})
		if err != nil {
			if !isAWSDuplicate(err) {
				return nil, errors.Wrapf(err, "aws: create security group %s", name)
			}
			return p.FindOrCreateFirewall(ctx, name, rules)
		}
		groupID = awssdk.ToString(created.GroupId)
	}

	if err := p.SetFirewallRules(ctx, groupID, rules); err != nil {
		return nil, err
	}
	return &compute.Firewall{ID: groupID, Name: name, Rules: rules}, nil
}

func (p *Provider) SetFirewallRules(ctx context.Context, firewallID string, rules []compute.FirewallRule) error {
	perms := toIPPermissions(rules)
	if len(perms) == 0 {
		return nil
	}
	_, err := p.ec2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId:       awssdk.String(firewallID),
		IpPermissions: perms,
	})
	if err != nil && !isAWSDuplicate(err) {
		return errors.Wrapf(err, "aws: authorize ingress on %s", firewallID)
	}
	return nil
}

func (p *Provider) GetFirewall(ctx context.Context, firewallID string) (*compute.Firewall, error) {
	out, err := p.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{GroupIds: []string{firewallID}})
	if err != nil {
		return nil, errors.Wrapf(err, "aws: describe security group %s", firewallID)
	}
	if len(out.SecurityGroups) == 0 {
		return nil, errors.Errorf("aws: security group %s not found", firewallID)
	}
	return &compute.Firewall{ID: firewallID, Name: awssdk.ToString(out.SecurityGroups[0].GroupName)}, nil
}

func (p *Provider) FindOrCreateVolume(ctx context.Context, in compute.CreateVolumeInput) (*compute.Volume, error) {
	out, err := p.ec2.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{Filters: nameFilter(in.Name)})
	if err != nil {
		return nil, errors.Wrapf(err, "aws: describe volumes")
	}
	if len(out.Volumes) > 0 {
		return volumeToDomain(out.Volumes[0], in.Name), nil
	}

	created, err := p.ec2.CreateVolume(ctx, &ec2.CreateVolumeInput{
		AvailabilityZone: awssdk.String(in.Location),
		Size:             awssdk.Int32(int32(in.SizeGB)),
		VolumeType:       ec2types.VolumeTypeGp3,
		TagSpecifications: []ec2types.TagSpecification{
			{ResourceType: ec2types.ResourceTypeVolume, Tags: nameTag(in.Name)},
		},
	})
	if err != nil {
		if isAWSDuplicate(err) {
			return p.FindOrCreateVolume(ctx, in)
		}
		return nil, errors.Wrapf(err, "aws: create volume %s", in.Name)
	}
	return &compute.Volume{
		ID:       awssdk.ToString(created.VolumeId),
		Name:     in.Name,
		SizeGB:   int(awssdk.ToInt32(created.Size)),
		Location: in.Location,
	}, nil
}

func volumeToDomain(v ec2types.Volume, name string) *compute.Volume {
	vol := &compute.Volume{ID: awssdk.ToString(v.VolumeId), Name: name, SizeGB: int(awssdk.ToInt32(v.Size)), Location: awssdk.ToString(v.AvailabilityZone)}
	if len(v.Attachments) > 0 {
		vol.ServerID = awssdk.ToString(v.Attachments[0].InstanceId)
	}
	return vol
}

func (p *Provider) AttachVolume(ctx context.Context, volumeID, serverID string) error {
	_, err := p.ec2.AttachVolume(ctx, &ec2.AttachVolumeInput{
		VolumeId:   awssdk.String(volumeID),
		InstanceId: awssdk.String(serverID),
		Device:     awssdk.String("/dev/sdf"),
	})
	if err != nil && !isAWSDuplicate(err) {
		return errors.Wrapf(err, "aws: attach volume %s to %s", volumeID, serverID)
	}
	return nil
}

func (p *Provider) WaitForDevicePath(ctx context.Context, volumeID string, ssh *sshclient.Client) (string, error) {
	var resolved string
	err := waiter.Poll(24, 5*time.Second, "waiting for EBS device path", func() (bool, error) {
		res, err := ssh.Execute("readlink -f /dev/xvdf || readlink -f /dev/nvme1n1", sshclient.ExecOptions{RaiseOnError: false, Timeout: 10 * time.Second})
		if err != nil {
			return false, err
		}
		if res.ExitCode != 0 {
			return false, nil
		}
		resolved = trimNewline(res.Output)
		return resolved != "", nil
	})
	if err != nil {
		return "", err
	}
	return resolved, nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func (p *Provider) FindOrCreateLoadBalancer(ctx context.Context, in compute.CreateLoadBalancerInput) (*compute.LoadBalancer, error) {
	out, err := p.elb.DescribeLoadBalancers(ctx, &elasticloadbalancingv2.DescribeLoadBalancersInput{Names: []string{in.Name}})
	if err == nil && len(out.LoadBalancers) > 0 {
		return lbToDomain(out.LoadBalancers[0]), nil
	}

	created, err := p.elb.CreateLoadBalancer(ctx, &elasticloadbalancingv2.CreateLoadBalancerInput{
		Name:   awssdk.String(in.Name),
		Type:   elbtypes.LoadBalancerTypeEnumNetwork,
		Scheme: elbtypes.LoadBalancerSchemeEnumInternetFacing,
	})
	if err != nil {
		if isAWSDuplicate(err) {
			return p.FindOrCreateLoadBalancer(ctx, in)
		}
		return nil, errors.Wrapf(err, "aws: create load balancer %s", in.Name)
	}
	if len(created.LoadBalancers) == 0 {
		return nil, errors.Errorf("aws: create load balancer %s returned none", in.Name)
	}
	return lbToDomain(created.LoadBalancers[0]), nil
}

func lbToDomain(lb elbtypes.LoadBalancer) *compute.LoadBalancer {
	out := &compute.LoadBalancer{ID: awssdk.ToString(lb.LoadBalancerArn), Name: awssdk.ToString(lb.LoadBalancerName)}
	if lb.DNSName != nil {
		out.PublicIP = *lb.DNSName
	}
	return out
}

// AttachLoadBalancerToNetwork is a no-op on AWS: an ELBv2 load
// balancer's subnets are fixed at creation and cannot be re-attached
// afterward, so network placement is handled by FindOrCreateLoadBalancer.
func (p *Provider) AttachLoadBalancerToNetwork(ctx context.Context, lbID, networkID string) error {
	return nil
}

func (p *Provider) AddLoadBalancerTarget(ctx context.Context, lbID, serverID string) error {
	groups, err := p.elb.DescribeTargetGroups(ctx, &elasticloadbalancingv2.DescribeTargetGroupsInput{LoadBalancerArn: awssdk.String(lbID)})
	if err != nil {
		return errors.Wrapf(err, "aws: describe target groups for load balancer %s", lbID)
	}
	if len(groups.TargetGroups) == 0 {
		return errors.Errorf("aws: no target group for load balancer %s", lbID)
	}
	_, err = p.elb.RegisterTargets(ctx, &elasticloadbalancingv2.RegisterTargetsInput{
		TargetGroupArn: groups.TargetGroups[0].TargetGroupArn,
		Targets:        []elbtypes.TargetDescription{{Id: awssdk.String(serverID)}},
	})
	if err != nil && !isAWSDuplicate(err) {
		return errors.Wrapf(err, "aws: register target %s", serverID)
	}
	return nil
}

func (p *Provider) AddLoadBalancerService(ctx context.Context, lbID string, listenPort, destPort int) error {
	tg, err := p.elb.CreateTargetGroup(ctx, &elasticloadbalancingv2.CreateTargetGroupInput{
		Name:     awssdk.String(fmt.Sprintf("tg-%d", destPort)),
		Port:     awssdk.Int32(int32(destPort)),
		Protocol: elbtypes.ProtocolEnumTcp,
	})
	if err != nil {
		if !isAWSDuplicate(err) {
			return errors.Wrapf(err, "aws: create target group for port %d", destPort)
		}
		return nil
	}
	_, err = p.elb.CreateListener(ctx, &elasticloadbalancingv2.CreateListenerInput{
		LoadBalancerArn: awssdk.String(lbID),
		Port:            awssdk.Int32(int32(listenPort)),
		Protocol:        elbtypes.ProtocolEnumTcp,
		DefaultActions: []elbtypes.Action{
			{Type: elbtypes.ActionTypeEnumForward, TargetGroupArn: tg.TargetGroups[0].TargetGroupArn},
		},
	})
	if err != nil && !isAWSDuplicate(err) {
		return errors.Wrapf(err, "aws: create listener on port %d", listenPort)
	}
	return nil
}

func (p *Provider) FindOrCreateSshKey(ctx context.Context, name, publicKey string) (*compute.SshKey, error) {
	out, err := p.ec2.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{KeyNames: []string{name}})
	if err == nil && len(out.KeyPairs) > 0 {
		return &compute.SshKey{ID: awssdk.ToString(out.KeyPairs[0].KeyPairId), Name: name, PublicKey: publicKey}, nil
	}

	imported, err := p.ec2.ImportKeyPair(ctx, &ec2.ImportKeyPairInput{
		KeyName:           awssdk.String(name),
		PublicKeyMaterial: []byte(publicKey),
	})
	if err != nil {
		if isAWSDuplicate(err) {
			return p.FindOrCreateSshKey(ctx, name, publicKey)
		}
		return nil, errors.Wrapf(err, "aws: import key pair %s", name)
	}
	return &compute.SshKey{ID: awssdk.ToString(imported.KeyPairId), Name: name, PublicKey: publicKey}, nil
}

func (p *Provider) FindOrCreateManagedCertificate(ctx context.Context, name string, domainNames []string) (*compute.Certificate, error) {
	if len(domainNames) == 0 {
		return nil, errors.Errorf("aws: managed certificate %s requires at least one domain name", name)
	}
	list, err := p.acm.ListCertificates(ctx, &acm.ListCertificatesInput{})
	if err == nil {
		for _, summary := range list.CertificateSummaryList {
			if awssdk.ToString(summary.DomainName) == domainNames[0] {
				return &compute.Certificate{ID: awssdk.ToString(summary.CertificateArn), Name: name, DomainNames: domainNames}, nil
			}
		}
	}

	requested, err := p.acm.RequestCertificate(ctx, &acm.RequestCertificateInput{
		DomainName:              awssdk.String(domainNames[0]),
		SubjectAlternativeNames: domainNames[1:],
		ValidationMethod:        acmtypes.ValidationMethodDns,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "aws: request certificate for %v", domainNames)
	}
	return &compute.Certificate{ID: awssdk.ToString(requested.CertificateArn), Name: name, DomainNames: domainNames}, nil
}
