// Package loader implements the unified resource loading engine: per-type
// tuned, TTL-cached, cancellable loads of Kubernetes objects normalized into
// flat dashboard records. Many consumers submit loads concurrently; the
// loader guarantees at most one in-flight worker per (type, namespace) key
// and exactly one completion or error notification per operation.
package loader

import "time"

// ResourceConfig tunes how one resource type is loaded. A config is resolved
// per call from the tier registry and may be overridden by the caller.
type ResourceConfig struct {
	ResourceType string
	// Namespace scopes the load; empty means all namespaces.
	Namespace string
	// BatchSize bounds items normalized per parallel sub-batch.
	BatchSize int
	// Timeout bounds the whole load operation.
	Timeout time.Duration
	// RequestTimeout bounds each network call within the operation.
	RequestTimeout time.Duration
	// CacheTTL is the freshness window for normal cache reads.
	CacheTTL time.Duration
	// MaxConcurrentRequests caps the multi-namespace fan-out.
	MaxConcurrentRequests int
}

// Tier defaults. High-frequency types are the ones a dashboard refreshes
// constantly, so they get short TTLs and large batches; low-frequency types
// (cluster plumbing) change rarely and cache for minutes.
var (
	highFrequencyConfig = ResourceConfig{
		BatchSize:             100,
		Timeout:               30 * time.Second,
		RequestTimeout:        10 * time.Second,
		CacheTTL:              15 * time.Second,
		MaxConcurrentRequests: 5,
	}
	mediumFrequencyConfig = ResourceConfig{
		BatchSize:             50,
		Timeout:               45 * time.Second,
		RequestTimeout:        15 * time.Second,
		CacheTTL:              60 * time.Second,
		MaxConcurrentRequests: 3,
	}
	lowFrequencyConfig = ResourceConfig{
		BatchSize:             25,
		Timeout:               60 * time.Second,
		RequestTimeout:        20 * time.Second,
		CacheTTL:              5 * time.Minute,
		MaxConcurrentRequests: 2,
	}
	// defaultConfig serves unknown resource types; an unrecognized type never
	// fails config resolution.
	defaultConfig = mediumFrequencyConfig
)

var tierByType = map[string]*ResourceConfig{
	// high frequency: main dashboard pages
	"pods":        &highFrequencyConfig,
	"deployments": &highFrequencyConfig,
	"services":    &highFrequencyConfig,
	"events":      &highFrequencyConfig,
	"replicasets": &highFrequencyConfig,

	// medium frequency: secondary pages
	"configmaps":               &mediumFrequencyConfig,
	"secrets":                  &mediumFrequencyConfig,
	"statefulsets":             &mediumFrequencyConfig,
	"daemonsets":               &mediumFrequencyConfig,
	"jobs":                     &mediumFrequencyConfig,
	"cronjobs":                 &mediumFrequencyConfig,
	"ingresses":                &mediumFrequencyConfig,
	"persistentvolumeclaims":   &mediumFrequencyConfig,
	"serviceaccounts":          &mediumFrequencyConfig,
	"endpoints":                &mediumFrequencyConfig,
	"horizontalpodautoscalers": &mediumFrequencyConfig,

	// low frequency: cluster plumbing
	"nodes":                           &lowFrequencyConfig,
	"namespaces":                      &lowFrequencyConfig,
	"persistentvolumes":               &lowFrequencyConfig,
	"storageclasses":                  &lowFrequencyConfig,
	"volumeattachments":               &lowFrequencyConfig,
	"clusterroles":                    &lowFrequencyConfig,
	"clusterrolebindings":             &lowFrequencyConfig,
	"roles":                           &lowFrequencyConfig,
	"rolebindings":                    &lowFrequencyConfig,
	"priorityclasses":                 &lowFrequencyConfig,
	"leases":                          &lowFrequencyConfig,
	"customresourcedefinitions":       &lowFrequencyConfig,
	"apiservices":                     &lowFrequencyConfig,
	"mutatingwebhookconfigurations":   &lowFrequencyConfig,
	"validatingwebhookconfigurations": &lowFrequencyConfig,
	"ingressclasses":                  &lowFrequencyConfig,
	"networkpolicies":                 &lowFrequencyConfig,
	"poddisruptionbudgets":            &lowFrequencyConfig,
	"resourcequotas":                  &lowFrequencyConfig,
	"limitranges":                     &lowFrequencyConfig,
}

// ConfigFor resolves the tuned config for a resource type. Unknown types get
// the safe default.
func ConfigFor(resourceType string) ResourceConfig {
	cfg := defaultConfig
	if tier, ok := tierByType[resourceType]; ok {
		cfg = *tier
	}
	cfg.ResourceType = resourceType
	return cfg
}

// merge applies non-zero fields of override onto cfg.
func (cfg ResourceConfig) merge(override *ResourceConfig) ResourceConfig {
	if override == nil {
		return cfg
	}
	if override.BatchSize > 0 {
		cfg.BatchSize = override.BatchSize
	}
	if override.Timeout > 0 {
		cfg.Timeout = override.Timeout
	}
	if override.RequestTimeout > 0 {
		cfg.RequestTimeout = override.RequestTimeout
	}
	if override.CacheTTL > 0 {
		cfg.CacheTTL = override.CacheTTL
	}
	if override.MaxConcurrentRequests > 0 {
		cfg.MaxConcurrentRequests = override.MaxConcurrentRequests
	}
	return cfg
}
