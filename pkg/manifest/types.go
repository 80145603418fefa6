// Package manifest generates the typed Kubernetes objects a deploy
// applies to the cluster: app secret, database, service and
// app-process workloads, tunnel daemon, backup cronjob and in-cluster
// registry. Every object carries the same labels and namespace so a
// single `kubectl apply -f` converges the whole deploy.
package manifest

const managedBy = "deployctl"

// ResourceProfile names a fixed point in the memory request/limit
// table.
type ResourceProfile string

const (
	ProfileMinimal ResourceProfile = "minimal"
	ProfileSmall   ResourceProfile = "small"
	ProfileMedium  ResourceProfile = "medium"
	ProfileLarge   ResourceProfile = "large"
)

// profileMemoryMB is the fixed profile -> memory table; requests use
// the value as-is, limits double it.
var profileMemoryMB = map[ResourceProfile]int64{
	ProfileMinimal: 128,
	ProfileSmall:   256,
	ProfileMedium:  512,
	ProfileLarge:   1024,
}

// Workload is the manifest generator's normalized view of a database,
// service or app process: enough to compute resources, node
// placement and labels uniformly across all three.
type Workload struct {
	Name         string
	Profile      ResourceProfile
	Replicas     int32
	RunsOn       []string
	InstanceType string
}

// Params carries everything render.go needs beyond the Configuration
// itself: values only known at deploy time (tunnel token, bucket
// credentials, master group name for node-selection defaulting).
type Params struct {
	Prefix          string
	Namespace       string
	MasterGroup     string
	ZoneDomain      string
	PullSecretName  string
	TunnelToken     string
	BucketCreds     map[string]BucketCredentials
	ClusterRegistry string
	AppImage        string
}

// FQDN resolves a configured subdomain against the zone: "@" names the
// apex, a dotted name is taken as already fully qualified, anything
// else hangs off the zone domain.
func (p Params) FQDN(subdomain string) string {
	switch {
	case subdomain == "" || p.ZoneDomain == "":
		return subdomain
	case subdomain == "@":
		return p.ZoneDomain
	}
	for i := 0; i < len(subdomain); i++ {
		if subdomain[i] == '.' {
			return subdomain
		}
	}
	return subdomain + "." + p.ZoneDomain
}

// BucketCredentials mirrors the S3-compatible credential shape an
// ensure-bucket call returns.
type BucketCredentials struct {
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	Region          string
}
