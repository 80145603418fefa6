package naming

// memoryClassMB gives the published RAM size, in megabytes, for the
// instance types each compute adapter accepts.
var memoryClassMB = map[string]map[string]int64{
	"hetzner": {
		"cpx11": 2048,
		"cpx21": 4096,
		"cpx31": 8192,
		"cpx41": 16384,
		"cpx51": 32768,
		"cx22":  4096,
		"cx32":  8192,
		"cx42":  16384,
		"cx52":  32768,
	},
	"scaleway": {
		"DEV1-S":  2048,
		"DEV1-M":  4096,
		"DEV1-L":  8192,
		"DEV1-XL": 12288,
		"GP1-XS":  16384,
		"GP1-S":   32768,
	},
	"aws": {
		"t3.small":  2048,
		"t3.medium": 4096,
		"t3.large":  8192,
		"t3.xlarge": 16384,
		"m5.large":  8192,
		"m5.xlarge": 16384,
	},
}

// MemoryClassMB looks up the published RAM size for a provider's
// instance type. ok is false for a provider or instance type this
// table doesn't know.
func MemoryClassMB(provider, instanceType string) (mb int64, ok bool) {
	classes, ok := memoryClassMB[provider]
	if !ok {
		return 0, false
	}
	mb, ok = classes[instanceType]
	return mb, ok
}
