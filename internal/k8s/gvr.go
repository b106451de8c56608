package k8s

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/runtime/schema"
)

var namespacesGVR = schema.GroupVersionResource{Group: "", Version: "v1", Resource: "namespaces"}

// gvrRegistry maps lowercase plural resource types to their GVRs. Grouped by
// API group for readability; lookup is flat.
var gvrRegistry = map[string]schema.GroupVersionResource{
	// core
	"pods":                   {Group: "", Version: "v1", Resource: "pods"},
	"services":               {Group: "", Version: "v1", Resource: "services"},
	"configmaps":             {Group: "", Version: "v1", Resource: "configmaps"},
	"secrets":                {Group: "", Version: "v1", Resource: "secrets"},
	"namespaces":             {Group: "", Version: "v1", Resource: "namespaces"},
	"nodes":                  {Group: "", Version: "v1", Resource: "nodes"},
	"persistentvolumes":      {Group: "", Version: "v1", Resource: "persistentvolumes"},
	"persistentvolumeclaims": {Group: "", Version: "v1", Resource: "persistentvolumeclaims"},
	"serviceaccounts":        {Group: "", Version: "v1", Resource: "serviceaccounts"},
	"endpoints":              {Group: "", Version: "v1", Resource: "endpoints"},
	"events":                 {Group: "", Version: "v1", Resource: "events"},
	"resourcequotas":         {Group: "", Version: "v1", Resource: "resourcequotas"},
	"limitranges":            {Group: "", Version: "v1", Resource: "limitranges"},
	"replicationcontrollers": {Group: "", Version: "v1", Resource: "replicationcontrollers"},

	// apps
	"deployments":  {Group: "apps", Version: "v1", Resource: "deployments"},
	"replicasets":  {Group: "apps", Version: "v1", Resource: "replicasets"},
	"statefulsets": {Group: "apps", Version: "v1", Resource: "statefulsets"},
	"daemonsets":   {Group: "apps", Version: "v1", Resource: "daemonsets"},

	// batch
	"jobs":     {Group: "batch", Version: "v1", Resource: "jobs"},
	"cronjobs": {Group: "batch", Version: "v1", Resource: "cronjobs"},

	// networking.k8s.io
	"ingresses":       {Group: "networking.k8s.io", Version: "v1", Resource: "ingresses"},
	"networkpolicies": {Group: "networking.k8s.io", Version: "v1", Resource: "networkpolicies"},
	"ingressclasses":  {Group: "networking.k8s.io", Version: "v1", Resource: "ingressclasses"},

	// rbac.authorization.k8s.io
	"roles":               {Group: "rbac.authorization.k8s.io", Version: "v1", Resource: "roles"},
	"rolebindings":        {Group: "rbac.authorization.k8s.io", Version: "v1", Resource: "rolebindings"},
	"clusterroles":        {Group: "rbac.authorization.k8s.io", Version: "v1", Resource: "clusterroles"},
	"clusterrolebindings": {Group: "rbac.authorization.k8s.io", Version: "v1", Resource: "clusterrolebindings"},

	// storage.k8s.io
	"storageclasses":    {Group: "storage.k8s.io", Version: "v1", Resource: "storageclasses"},
	"volumeattachments": {Group: "storage.k8s.io", Version: "v1", Resource: "volumeattachments"},

	// autoscaling / policy
	"horizontalpodautoscalers": {Group: "autoscaling", Version: "v2", Resource: "horizontalpodautoscalers"},
	"poddisruptionbudgets":     {Group: "policy", Version: "v1", Resource: "poddisruptionbudgets"},

	// scheduling.k8s.io / coordination.k8s.io
	"priorityclasses": {Group: "scheduling.k8s.io", Version: "v1", Resource: "priorityclasses"},
	"leases":          {Group: "coordination.k8s.io", Version: "v1", Resource: "leases"},

	// apiregistration / apiextensions / admissionregistration
	"apiservices":                     {Group: "apiregistration.k8s.io", Version: "v1", Resource: "apiservices"},
	"customresourcedefinitions":       {Group: "apiextensions.k8s.io", Version: "v1", Resource: "customresourcedefinitions"},
	"mutatingwebhookconfigurations":   {Group: "admissionregistration.k8s.io", Version: "v1", Resource: "mutatingwebhookconfigurations"},
	"validatingwebhookconfigurations": {Group: "admissionregistration.k8s.io", Version: "v1", Resource: "validatingwebhookconfigurations"},
}

// clusterScoped lists resource types that have no namespace. For these the
// loader always issues an unscoped list and ignores any namespace argument.
var clusterScoped = map[string]bool{
	"nodes":                           true,
	"namespaces":                      true,
	"persistentvolumes":               true,
	"storageclasses":                  true,
	"volumeattachments":               true,
	"clusterroles":                    true,
	"clusterrolebindings":             true,
	"ingressclasses":                  true,
	"priorityclasses":                 true,
	"customresourcedefinitions":       true,
	"apiservices":                     true,
	"mutatingwebhookconfigurations":   true,
	"validatingwebhookconfigurations": true,
}

// NormalizeResourceType converts an API kind (e.g. "Pod", "Pods", "pod") to
// the lowercase plural used for GVR lookup.
func NormalizeResourceType(kind string) string {
	s := strings.ToLower(strings.TrimSpace(kind))
	if s == "" {
		return s
	}
	if _, ok := gvrRegistry[s]; ok {
		return s
	}
	if plural, ok := singularAliases[s]; ok {
		return plural
	}
	if !strings.HasSuffix(s, "s") {
		return s + "s"
	}
	return s
}

// singularAliases pluralizes the registry singulars that already end in "s"
// and so cannot take the naive "s" suffix.
var singularAliases = map[string]string{
	"ingress":       "ingresses",
	"ingressclass":  "ingressclasses",
	"storageclass":  "storageclasses",
	"priorityclass": "priorityclasses",
}

// GVRForType returns the GroupVersionResource for a resource type.
func GVRForType(resourceType string) (schema.GroupVersionResource, error) {
	if gvr, ok := gvrRegistry[resourceType]; ok {
		return gvr, nil
	}
	return schema.GroupVersionResource{}, fmt.Errorf("unknown resource type: %s", resourceType)
}

// KnownResourceTypes returns all registered resource types.
func KnownResourceTypes() []string {
	out := make([]string, 0, len(gvrRegistry))
	for t := range gvrRegistry {
		out = append(out, t)
	}
	return out
}

// IsClusterScoped reports whether the resource type ignores namespaces.
// Unknown types default to namespaced.
func IsClusterScoped(resourceType string) bool {
	return clusterScoped[resourceType]
}
