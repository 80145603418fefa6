// Package compute defines the provider-agnostic contract every compute
// adapter (Hetzner, Scaleway, AWS) satisfies. Every find_or_create_X
// operation is idempotent: calling it twice with identical arguments
// returns the same entity, swallowing "already exists"-shaped
// conflicts at the adapter boundary.
package compute

import (
	"context"

	"github.com/deployctl/deployctl/pkg/sshclient"
)

type Server struct {
	ID           string
	Name         string
	PublicIPv4   string
	PrivateIPv4  string
	InstanceType string
	Location     string
	Status       string
	Labels       map[string]string
}

type Network struct {
	ID     string
	Name   string
	Labels map[string]string
}

type FirewallRule struct {
	Direction string // "in" | "out"
	Protocol  string // "tcp" | "udp" | "icmp"
	Port      string // "22", "6443", "any", ...
	SourceIPs []string
}

type Firewall struct {
	ID     string
	Name   string
	Rules  []FirewallRule
	Labels map[string]string
}

type Volume struct {
	ID       string
	Name     string
	SizeGB   int
	Location string
	ServerID string
	Labels   map[string]string
}

type LoadBalancer struct {
	ID       string
	Name     string
	PublicIP string
	Labels   map[string]string
}

type SshKey struct {
	ID        string
	Name      string
	PublicKey string
}

type Certificate struct {
	ID          string
	Name        string
	DomainNames []string
}

type CreateServerInput struct {
	Name         string
	InstanceType string
	Location     string
	Image        string
	UserData     string
	Labels       map[string]string
	FirewallIDs  []string
	NetworkIDs   []string
	SshKeyIDs    []string
}

type CreateVolumeInput struct {
	Name     string
	SizeGB   int
	Location string
	Labels   map[string]string
}

type CreateLoadBalancerInput struct {
	Name     string
	Location string
	Labels   map[string]string
}

// Provider is the uniform find_or_create / attach / detach / delete
// contract implemented per cloud.
type Provider interface {
	ProviderName() string
	SupportsSelfHosted() bool
	VMBased() bool

	ValidateCredentials(ctx context.Context) error

	ListServers(ctx context.Context) ([]Server, error)
	FindServer(ctx context.Context, name string) (*Server, error)
	FindOrCreateServer(ctx context.Context, in CreateServerInput) (*Server, error)
	DeleteServerByName(ctx context.Context, name string) error

	FindOrCreateNetwork(ctx context.Context, name, location string) (*Network, error)
	FindOrCreateFirewall(ctx context.Context, name string, rules []FirewallRule) (*Firewall, error)
	SetFirewallRules(ctx context.Context, firewallID string, rules []FirewallRule) error
	GetFirewall(ctx context.Context, firewallID string) (*Firewall, error)

	FindOrCreateVolume(ctx context.Context, in CreateVolumeInput) (*Volume, error)
	AttachVolume(ctx context.Context, volumeID, serverID string) error
	WaitForDevicePath(ctx context.Context, volumeID string, ssh *sshclient.Client) (string, error)

	FindOrCreateLoadBalancer(ctx context.Context, in CreateLoadBalancerInput) (*LoadBalancer, error)
	AttachLoadBalancerToNetwork(ctx context.Context, lbID, networkID string) error
	AddLoadBalancerTarget(ctx context.Context, lbID, serverID string) error
	AddLoadBalancerService(ctx context.Context, lbID string, listenPort, destPort int) error

	FindOrCreateSshKey(ctx context.Context, name, publicKey string) (*SshKey, error)
	FindOrCreateManagedCertificate(ctx context.Context, name string, domainNames []string) (*Certificate, error)

	// Delete operations are best-effort teardown: deleting a resource
	// that is already absent is a no-op, never an error.
	DeleteNetworkByName(ctx context.Context, name string) error
	DeleteFirewallByName(ctx context.Context, name string) error
	DeleteVolumeByName(ctx context.Context, name string) error
}
