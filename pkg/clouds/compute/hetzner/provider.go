package hetzner

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/deployctl/deployctl/pkg/clouds/compute"
	"github.com/deployctl/deployctl/pkg/httpclient"
	"github.com/deployctl/deployctl/pkg/sshclient"
	"github.com/deployctl/deployctl/pkg/waiter"
)

type hzPublicNet struct {
	IPv4 struct {
		IP string `json:"ip"`
	} `json:"ipv4"`
}

type hzPrivateNet struct {
	IP string `json:"ip"`
}

type hzServer struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	Status     string         `json:"status"`
	PublicNet  hzPublicNet    `json:"public_net"`
	PrivateNet []hzPrivateNet `json:"private_net"`
	ServerType struct {
		Name string `json:"name"`
	} `json:"server_type"`
	Datacenter struct {
		Location struct {
			Name string `json:"name"`
		} `json:"location"`
	} `json:"datacenter"`
	Labels map[string]string `json:"labels"`
}

func (s hzServer) toServer() compute.Server {
	out := compute.Server{
		ID:           strconv.FormatInt(s.ID, 10),
		Name:         s.Name,
		PublicIPv4:   s.PublicNet.IPv4.IP,
		InstanceType: s.ServerType.Name,
		Location:     s.Datacenter.Location.Name,
		Status:       s.Status,
		Labels:       s.Labels,
	}
	if len(s.PrivateNet) > 0 {
		out.PrivateIPv4 = s.PrivateNet[0].IP
	}
	return out
}

func (p *Provider) ListServers(ctx context.Context) ([]compute.Server, error) {
	var out struct {
		Servers []hzServer `json:"servers"`
	}
	if err := p.http.Get(ctx, "/servers", nil, &out); err != nil {
		return nil, err
	}
	servers := make([]compute.Server, 0, len(out.Servers))
	for _, s := range out.Servers {
		servers = append(servers, s.toServer())
	}
	return servers, nil
}

func (p *Provider) FindServer(ctx context.Context, name string) (*compute.Server, error) {
	var out struct {
		Servers []hzServer `json:"servers"`
	}
	q := url.Values{"name": []string{name}}
	if err := p.http.Get(ctx, "/servers", q, &out); err != nil {
		return nil, err
	}
	if len(out.Servers) == 0 {
		return nil, nil
	}
	server := out.Servers[0].toServer()
	return &server, nil
}

func (p *Provider) FindOrCreateServer(ctx context.Context, in compute.CreateServerInput) (*compute.Server, error) {
	if existing, err := p.FindServer(ctx, in.Name); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	firewalls := make([]map[string]int64, 0, len(in.FirewallIDs))
	for _, id := range in.FirewallIDs {
		firewalls = append(firewalls, map[string]int64{"firewall": mustID(id)})
	}
	networks := make([]int64, 0, len(in.NetworkIDs))
	for _, id := range in.NetworkIDs {
		networks = append(networks, mustID(id))
	}
	sshKeys := make([]int64, 0, len(in.SshKeyIDs))
	for _, id := range in.SshKeyIDs {
		sshKeys = append(sshKeys, mustID(id))
	}

	body := map[string]interface{}{
		"name":        in.Name,
		"server_type": in.InstanceType,
		"image":       in.Image,
		"location":    in.Location,
		"user_data":   in.UserData,
		"labels":      in.Labels,
		"firewalls":   firewalls,
		"networks":    networks,
		"ssh_keys":    sshKeys,
	}

	var out struct {
		Server hzServer `json:"server"`
	}
	if err := p.http.Post(ctx, "/servers", body, &out); err != nil {
		if compute.IsIdempotentConflict(err) {
			return p.FindServer(ctx, in.Name)
		}
		return nil, errors.Wrapf(err, "hetzner: create server %s", in.Name)
	}
	server := out.Server.toServer()
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
	if err := p.http.Delete(ctx, "/servers/"+server.ID, nil); err != nil {
		if apiErr, ok := err.(*httpclient.ApiError); ok && apiErr.NotFound() {
			return nil
		}
		return err
	}
	return nil
}

type hzNetwork struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (p *Provider) FindOrCreateNetwork(ctx context.Context, name, location string) (*compute.Network, error) {
	var list struct {
		Networks []hzNetwork `json:"networks"`
	}
	q := url.Values{"name": []string{name}}
	if err := p.http.Get(ctx, "/networks", q, &list); err != nil {
		return nil, err
	}
	if len(list.Networks) > 0 {
		return &compute.Network{ID: strconv.FormatInt(list.Networks[0].ID, 10), Name: list.Networks[0].Name}, nil
	}

	body := map[string]interface{}{
		"name":     name,
		"ip_range": "10.0.0.0/16",
	}
	var out struct {
		Network hzNetwork `json:"network"`
	}
	if err := p.http.Post(ctx, "/networks", body, &out); err != nil {
		if compute.IsIdempotentConflict(err) {
			return p.FindOrCreateNetwork(ctx, name, location)
		}
		return nil, errors.Wrapf(err, "hetzner: create network %s", name)
	}
	return &compute.Network{ID: strconv.FormatInt(out.Network.ID, 10), Name: out.Network.Name}, nil
}

type hzFirewall struct {
	ID    int64      `json:"id"`
	Name  string     `json:"name"`
	Rules []hzFWRule `json:"rules"`
}

type hzFWRule struct {
	Direction string   `json:"direction"`
	Protocol  string   `json:"protocol"`
	Port      string   `json:"port"`
	SourceIPs []string `json:"source_ips"`
}

func toHzRules(rules []compute.FirewallRule) []hzFWRule {
	out := make([]hzFWRule, 0, len(rules))
	for _, r := range rules {
		out = append(out, hzFWRule{Direction: r.Direction, Protocol: r.Protocol, Port: r.Port, SourceIPs: r.SourceIPs})
	}
	return out
}

func (f hzFirewall) toFirewall() compute.Firewall {
	rules := make([]compute.FirewallRule, 0, len(f.Rules))
	for _, r := range f.Rules {
		rules = append(rules, compute.FirewallRule{Direction: r.Direction, Protocol: r.Protocol, Port: r.Port, SourceIPs: r.SourceIPs})
	}
	return compute.Firewall{ID: strconv.FormatInt(f.ID, 10), Name: f.Name, Rules: rules}
}

func (p *Provider) FindOrCreateFirewall(ctx context.Context, name string, rules []compute.FirewallRule) (*compute.Firewall, error) {
	var list struct {
		Firewalls []hzFirewall `json:"firewalls"`
	}
	q := url.Values{"name": []string{name}}
	if err := p.http.Get(ctx, "/firewalls", q, &list); err != nil {
		return nil, err
	}
	if len(list.Firewalls) > 0 {
		fw := list.Firewalls[0].toFirewall()
		return &fw, nil
	}

	body := map[string]interface{}{"name": name, "rules": toHzRules(rules)}
	var out struct {
		Firewall hzFirewall `json:"firewall"`
	}
	if err := p.http.Post(ctx, "/firewalls", body, &out); err != nil {
		if compute.IsIdempotentConflict(err) {
			return p.FindOrCreateFirewall(ctx, name, rules)
		}
		return nil, errors.Wrapf(err, "hetzner: create firewall %s", name)
	}
	fw := out.Firewall.toFirewall()
	return &fw, nil
}

func (p *Provider) SetFirewallRules(ctx context.Context, firewallID string, rules []compute.FirewallRule) error {
	body := map[string]interface{}{"rules": toHzRules(rules)}
	return p.http.Post(ctx, "/firewalls/"+firewallID+"/actions/set_rules", body, nil)
}

func (p *Provider) GetFirewall(ctx context.Context, firewallID string) (*compute.Firewall, error) {
	var out struct {
		Firewall hzFirewall `json:"firewall"`
	}
	if err := p.http.Get(ctx, "/firewalls/"+firewallID, nil, &out); err != nil {
		return nil, err
	}
	fw := out.Firewall.toFirewall()
	return &fw, nil
}

type hzVolume struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Size     int    `json:"size"`
	Location struct {
		Name string `json:"name"`
	} `json:"location"`
	Server int64 `json:"server"`
}

func (v hzVolume) toVolume() compute.Volume {
	vol := compute.Volume{ID: strconv.FormatInt(v.ID, 10), Name: v.Name, SizeGB: v.Size, Location: v.Location.Name}
	if v.Server != 0 {
		vol.ServerID = strconv.FormatInt(v.Server, 10)
	}
	return vol
}

func (p *Provider) FindOrCreateVolume(ctx context.Context, in compute.CreateVolumeInput) (*compute.Volume, error) {
	var list struct {
		Volumes []hzVolume `json:"volumes"`
	}
	q := url.Values{"name": []string{in.Name}}
	if err := p.http.Get(ctx, "/volumes", q, &list); err != nil {
		return nil, err
	}
	if len(list.Volumes) > 0 {
		vol := list.Volumes[0].toVolume()
		return &vol, nil
	}

	body := map[string]interface{}{
		"name":     in.Name,
		"size":     in.SizeGB,
		"location": in.Location,
		"labels":   in.Labels,
		"format":   "ext4",
	}
	var out struct {
		Volume hzVolume `json:"volume"`
	}
	if err := p.http.Post(ctx, "/volumes", body, &out); err != nil {
		if compute.IsIdempotentConflict(err) {
			return p.FindOrCreateVolume(ctx, in)
		}
		return nil, errors.Wrapf(err, "hetzner: create volume %s", in.Name)
	}
	vol := out.Volume.toVolume()
	return &vol, nil
}

func (p *Provider) AttachVolume(ctx context.Context, volumeID, serverID string) error {
	body := map[string]interface{}{"server": mustID(serverID), "automount": false}
	if err := p.http.Post(ctx, "/volumes/"+volumeID+"/actions/attach", body, nil); err != nil {
		if compute.IsIdempotentConflict(err) {
			return nil
		}
		return err
	}
	return nil
}

// WaitForDevicePath polls the host over SSH for the kernel device link
// Hetzner mounts attached volumes under.
func (p *Provider) WaitForDevicePath(ctx context.Context, volumeID string, ssh *sshclient.Client) (string, error) {
	devicePath := fmt.Sprintf("/dev/disk/by-id/scsi-0HC_Volume_%s", volumeID)
	var resolved string
	err := waiter.Poll(24, 5*time.Second, "waiting for device path "+devicePath, func() (bool, error) {
		res, err := ssh.Execute("readlink -f "+devicePath, sshclient.ExecOptions{RaiseOnError: false, Timeout: 10 * time.Second})
		if err != nil {
			return false, err
		}
		if res.ExitCode != 0 {
			return false, nil
		}
		path := trimNewline(res.Output)
		if path == "" {
			return false, nil
		}
		resolved = path
		return true, nil
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

type hzLoadBalancer struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	PublicNet struct {
		IPv4 struct {
			IP string `json:"ip"`
		} `json:"ipv4"`
	} `json:"public_net"`
}

func (p *Provider) FindOrCreateLoadBalancer(ctx context.Context, in compute.CreateLoadBalancerInput) (*compute.LoadBalancer, error) {
	var list struct {
		LoadBalancers []hzLoadBalancer `json:"load_balancers"`
	}
	q := url.Values{"name": []string{in.Name}}
	if err := p.http.Get(ctx, "/load_balancers", q, &list); err != nil {
		return nil, err
	}
	if len(list.LoadBalancers) > 0 {
		lb := list.LoadBalancers[0]
		return &compute.LoadBalancer{ID: strconv.FormatInt(lb.ID, 10), Name: lb.Name, PublicIP: lb.PublicNet.IPv4.IP}, nil
	}

	body := map[string]interface{}{
		"name":               in.Name,
		"load_balancer_type": "lb11",
		"location":           in.Location,
		"labels":             in.Labels,
	}
	var out struct {
		LoadBalancer hzLoadBalancer `json:"load_balancer"`
	}
	if err := p.http.Post(ctx, "/load_balancers", body, &out); err != nil {
		if compute.IsIdempotentConflict(err) {
			return p.FindOrCreateLoadBalancer(ctx, in)
		}
		return nil, errors.Wrapf(err, "hetzner: create load balancer %s", in.Name)
	}
	lb := out.LoadBalancer
	return &compute.LoadBalancer{ID: strconv.FormatInt(lb.ID, 10), Name: lb.Name, PublicIP: lb.PublicNet.IPv4.IP}, nil
}

func (p *Provider) AttachLoadBalancerToNetwork(ctx context.Context, lbID, networkID string) error {
	body := map[string]interface{}{"network": mustID(networkID)}
	if err := p.http.Post(ctx, "/load_balancers/"+lbID+"/actions/attach_to_network", body, nil); err != nil {
		if compute.IsIdempotentConflict(err) {
			return nil
		}
		return err
	}
	return nil
}

func (p *Provider) AddLoadBalancerTarget(ctx context.Context, lbID, serverID string) error {
	body := map[string]interface{}{
		"type":   "server",
		"server": map[string]int64{"id": mustID(serverID)},
	}
	if err := p.http.Post(ctx, "/load_balancers/"+lbID+"/actions/add_target", body, nil); err != nil {
		if compute.IsIdempotentConflict(err) {
			return nil
		}
		return err
	}
	return nil
}

func (p *Provider) AddLoadBalancerService(ctx context.Context, lbID string, listenPort, destPort int) error {
	body := map[string]interface{}{
		"protocol":         "tcp",
		"listen_port":      listenPort,
		"destination_port": destPort,
	}
	if err := p.http.Post(ctx, "/load_balancers/"+lbID+"/actions/add_service", body, nil); err != nil {
		if compute.IsIdempotentConflict(err) {
			return nil
		}
		return err
	}
	return nil
}

type hzSshKey struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	PublicKey string `json:"public_key"`
}

func (p *Provider) FindOrCreateSshKey(ctx context.Context, name, publicKey string) (*compute.SshKey, error) {
	var list struct {
		SshKeys []hzSshKey `json:"ssh_keys"`
	}
	q := url.Values{"name": []string{name}}
	if err := p.http.Get(ctx, "/ssh_keys", q, &list); err != nil {
		return nil, err
	}
	if len(list.SshKeys) > 0 {
		k := list.SshKeys[0]
		return &compute.SshKey{ID: strconv.FormatInt(k.ID, 10), Name: k.Name, PublicKey: k.PublicKey}, nil
	}

	body := map[string]interface{}{"name": name, "public_key": publicKey}
	var out struct {
		SshKey hzSshKey `json:"ssh_key"`
	}
	if err := p.http.Post(ctx, "/ssh_keys", body, &out); err != nil {
		if compute.IsIdempotentConflict(err) {
			return p.FindOrCreateSshKey(ctx, name, publicKey)
		}
		return nil, errors.Wrapf(err, "hetzner: create ssh key %s", name)
	}
	k := out.SshKey
	return &compute.SshKey{ID: strconv.FormatInt(k.ID, 10), Name: k.Name, PublicKey: k.PublicKey}, nil
}

type hzCertificate struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	DomainNames []string `json:"domain_names"`
}

func (p *Provider) FindOrCreateManagedCertificate(ctx context.Context, name string, domainNames []string) (*compute.Certificate, error) {
	var list struct {
		Certificates []hzCertificate `json:"certificates"`
	}
	q := url.Values{"name": []string{name}}
	if err := p.http.Get(ctx, "/certificates", q, &list); err != nil {
		return nil, err
	}
	if len(list.Certificates) > 0 {
		c := list.Certificates[0]
		return &compute.Certificate{ID: strconv.FormatInt(c.ID, 10), Name: c.Name, DomainNames: c.DomainNames}, nil
	}

	body := map[string]interface{}{"name": name, "type": "managed", "domain_names": domainNames}
	var out struct {
		Certificate hzCertificate `json:"certificate"`
	}
	if err := p.http.Post(ctx, "/certificates", body, &out); err != nil {
		if compute.IsIdempotentConflict(err) {
			return p.FindOrCreateManagedCertificate(ctx, name, domainNames)
		}
		return nil, errors.Wrapf(err, "hetzner: create certificate %s", name)
	}
	c := out.Certificate
	return &compute.Certificate{ID: strconv.FormatInt(c.ID, 10), Name: c.Name, DomainNames: c.DomainNames}, nil
}

func mustID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
