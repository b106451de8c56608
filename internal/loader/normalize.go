package loader

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/kubeglass/kubeglass-backend/internal/models"
)

// formatAge renders elapsed time the way dashboard columns expect: days when
// at least a day old, hours when at least an hour, minutes otherwise.
// Boundaries round down, so 90 minutes is "1h" and 30 seconds is "0m".
func formatAge(elapsed time.Duration) string {
	if elapsed < 0 {
		elapsed = 0
	}
	if days := int(elapsed.Hours() / 24); days >= 1 {
		return fmt.Sprintf("%dd", days)
	}
	if hours := int(elapsed.Hours()); hours >= 1 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dm", int(elapsed.Minutes()))
}

// normalizeObject flattens one raw object into a Record. It never lets a
// malformed object escalate: any internal failure returns ok=false and the
// batch continues without that record.
func normalizeObject(u *unstructured.Unstructured, resourceType string, now time.Time) (rec *models.Record, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			rec, ok = nil, false
		}
	}()

	if u == nil {
		return nil, false
	}
	name := u.GetName()
	if name == "" {
		return nil, false
	}

	created := u.GetCreationTimestamp().Time
	age := models.ValueUnknown
	if !created.IsZero() {
		age = formatAge(now.Sub(created))
	}

	labels := u.GetLabels()
	if labels == nil {
		labels = map[string]string{}
	}
	annotations := u.GetAnnotations()
	if annotations == nil {
		annotations = map[string]string{}
	}

	rec = &models.Record{
		Name:         name,
		Namespace:    u.GetNamespace(),
		Age:          age,
		Created:      created,
		Labels:       labels,
		Annotations:  annotations,
		ResourceType: resourceType,
		UID:          string(u.GetUID()),
		Fields:       extractFields(u, resourceType),
		Raw:          serializeRaw(u),
	}
	return rec, true
}

// serializeRaw marshals the full object best-effort. On failure a
// metadata-only stub stands in so the record survives.
func serializeRaw(u *unstructured.Unstructured) json.RawMessage {
	if data, err := json.Marshal(u.Object); err == nil {
		return data
	}
	stub := map[string]any{
		"metadata": map[string]any{
			"name":      u.GetName(),
			"namespace": u.GetNamespace(),
			"uid":       string(u.GetUID()),
		},
	}
	data, err := json.Marshal(stub)
	if err != nil {
		return nil
	}
	return data
}

type fieldExtractor func(u *unstructured.Unstructured) map[string]any

var fieldExtractors = map[string]fieldExtractor{
	"pods":                   extractPodFields,
	"nodes":                  extractNodeFields,
	"services":               extractServiceFields,
	"deployments":            extractWorkloadFields,
	"statefulsets":           extractWorkloadFields,
	"replicasets":            extractWorkloadFields,
	"daemonsets":             extractDaemonSetFields,
	"configmaps":             extractConfigMapFields,
	"secrets":                extractSecretFields,
	"namespaces":             extractNamespaceFields,
	"persistentvolumes":      extractPersistentVolumeFields,
	"persistentvolumeclaims": extractPersistentVolumeClaimFields,
	"ingresses":              extractIngressFields,
	"jobs":                   extractJobFields,
	"cronjobs":               extractCronJobFields,
	"leases":                 extractLeaseFields,
	"priorityclasses":        extractPriorityClassFields,
}

func extractFields(u *unstructured.Unstructured, resourceType string) map[string]any {
	if extract, ok := fieldExtractors[resourceType]; ok {
		return extract(u)
	}
	return extractDefaultFields(u)
}

func extractDefaultFields(u *unstructured.Unstructured) map[string]any {
	return map[string]any{
		"kind":        u.GetKind(),
		"api_version": u.GetAPIVersion(),
	}
}

// crashReasons are container waiting reasons severe enough to override the
// pod phase in the status column.
var crashReasons = map[string]bool{
	"CrashLoopBackOff": true,
	"ImagePullBackOff": true,
	"ErrImagePull":     true,
}

func extractPodFields(u *unstructured.Unstructured) map[string]any {
	phase, found, _ := unstructured.NestedString(u.Object, "status", "phase")
	if !found || phase == "" {
		phase = models.ValueUnknown
	}
	status := phase

	containerStatuses, _, _ := unstructured.NestedSlice(u.Object, "status", "containerStatuses")
	readyContainers := 0
	totalContainers := len(containerStatuses)
	restarts := int64(0)
	statusSeverity := 0
	for _, cs := range containerStatuses {
		csMap, ok := cs.(map[string]any)
		if !ok {
			continue
		}
		if ready, _, _ := unstructured.NestedBool(csMap, "ready"); ready {
			readyContainers++
		}
		if restartCount, _, _ := unstructured.NestedInt64(csMap, "restartCount"); restartCount > 0 {
			restarts += restartCount
		}
		// Severity refinement across all containers: terminated-nonzero beats
		// a crash waiting reason beats the reported phase.
		if exitCode, found, _ := unstructured.NestedInt64(csMap, "state", "terminated", "exitCode"); found && exitCode != 0 {
			if statusSeverity < 2 {
				status, statusSeverity = "Error", 2
			}
			continue
		}
		if reason, _, _ := unstructured.NestedString(csMap, "state", "waiting", "reason"); crashReasons[reason] && statusSeverity < 1 {
			status, statusSeverity = reason, 1
		}
	}

	nodeName, found, _ := unstructured.NestedString(u.Object, "spec", "nodeName")
	if !found || nodeName == "" {
		nodeName = models.ValueNone
	}
	podIP, found, _ := unstructured.NestedString(u.Object, "status", "podIP")
	if !found || podIP == "" {
		podIP = models.ValueNone
	}

	containers, _, _ := unstructured.NestedSlice(u.Object, "spec", "containers")
	containerNames := make([]string, 0, len(containers))
	for _, c := range containers {
		cMap, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if cname, _, _ := unstructured.NestedString(cMap, "name"); cname != "" {
			containerNames = append(containerNames, cname)
		}
	}

	return map[string]any{
		"status":     status,
		"phase":      phase,
		"ready":      fmt.Sprintf("%d/%d", readyContainers, totalContainers),
		"restarts":   restarts,
		"node_name":  nodeName,
		"pod_ip":     podIP,
		"containers": containerNames,
	}
}

func extractNodeFields(u *unstructured.Unstructured) map[string]any {
	var roles []string
	for label := range u.GetLabels() {
		if role, found := strings.CutPrefix(label, "node-role.kubernetes.io/"); found && role != "" {
			roles = append(roles, role)
		}
	}
	sort.Strings(roles)
	if len(roles) == 0 {
		roles = []string{models.ValueNone}
	}

	version, found, _ := unstructured.NestedString(u.Object, "status", "nodeInfo", "kubeletVersion")
	if !found || version == "" {
		version = models.ValueUnknown
	}

	status := "NotReady"
	conditions, _, _ := unstructured.NestedSlice(u.Object, "status", "conditions")
	for _, cond := range conditions {
		condMap, ok := cond.(map[string]any)
		if !ok {
			continue
		}
		condType, _, _ := unstructured.NestedString(condMap, "type")
		condStatus, _, _ := unstructured.NestedString(condMap, "status")
		if condType == "Ready" && condStatus == "True" {
			status = "Ready"
		}
	}

	capacity, _, _ := unstructured.NestedStringMap(u.Object, "status", "capacity")
	allocatable, _, _ := unstructured.NestedStringMap(u.Object, "status", "allocatable")

	internalIP := models.ValueNone
	addresses, _, _ := unstructured.NestedSlice(u.Object, "status", "addresses")
	for _, addr := range addresses {
		addrMap, ok := addr.(map[string]any)
		if !ok {
			continue
		}
		addrType, _, _ := unstructured.NestedString(addrMap, "type")
		if addrType == "InternalIP" {
			if ip, _, _ := unstructured.NestedString(addrMap, "address"); ip != "" {
				internalIP = ip
			}
		}
	}

	return map[string]any{
		"status":      status,
		"roles":       roles,
		"version":     version,
		"internal_ip": internalIP,
		"capacity":    capacity,
		"allocatable": allocatable,
	}
}

func extractServiceFields(u *unstructured.Unstructured) map[string]any {
	svcType, found, _ := unstructured.NestedString(u.Object, "spec", "type")
	if !found || svcType == "" {
		svcType = "ClusterIP"
	}
	clusterIP, found, _ := unstructured.NestedString(u.Object, "spec", "clusterIP")
	if !found || clusterIP == "" {
		clusterIP = models.ValueNone
	}

	var portStrings []string
	ports, _, _ := unstructured.NestedSlice(u.Object, "spec", "ports")
	for _, p := range ports {
		pMap, ok := p.(map[string]any)
		if !ok {
			continue
		}
		port, _, _ := unstructured.NestedInt64(pMap, "port")
		protocol, _, _ := unstructured.NestedString(pMap, "protocol")
		if protocol == "" {
			protocol = "TCP"
		}
		portStrings = append(portStrings, fmt.Sprintf("%d/%s", port, protocol))
	}

	externalIPs, _, _ := unstructured.NestedStringSlice(u.Object, "spec", "externalIPs")

	return map[string]any{
		"type":         svcType,
		"cluster_ip":   clusterIP,
		"ports":        portStrings,
		"external_ips": externalIPs,
	}
}

func extractWorkloadFields(u *unstructured.Unstructured) map[string]any {
	desired, found, _ := unstructured.NestedInt64(u.Object, "spec", "replicas")
	if !found {
		desired = 1
	}
	ready, _, _ := unstructured.NestedInt64(u.Object, "status", "readyReplicas")
	updated, _, _ := unstructured.NestedInt64(u.Object, "status", "updatedReplicas")
	available, _, _ := unstructured.NestedInt64(u.Object, "status", "availableReplicas")

	return map[string]any{
		"ready":     fmt.Sprintf("%d/%d", ready, desired),
		"desired":   desired,
		"updated":   updated,
		"available": available,
	}
}

func extractDaemonSetFields(u *unstructured.Unstructured) map[string]any {
	desired, _, _ := unstructured.NestedInt64(u.Object, "status", "desiredNumberScheduled")
	ready, _, _ := unstructured.NestedInt64(u.Object, "status", "numberReady")
	available, _, _ := unstructured.NestedInt64(u.Object, "status", "numberAvailable")

	return map[string]any{
		"ready":     fmt.Sprintf("%d/%d", ready, desired),
		"desired":   desired,
		"available": available,
	}
}

func extractConfigMapFields(u *unstructured.Unstructured) map[string]any {
	data, _, _ := unstructured.NestedMap(u.Object, "data")
	binaryData, _, _ := unstructured.NestedMap(u.Object, "binaryData")
	return map[string]any{
		"keys": len(data) + len(binaryData),
	}
}

func extractSecretFields(u *unstructured.Unstructured) map[string]any {
	secretType, found, _ := unstructured.NestedString(u.Object, "type")
	if !found || secretType == "" {
		secretType = "Opaque"
	}
	// key names only; secret values never leave the raw payload
	data, _, _ := unstructured.NestedMap(u.Object, "data")
	return map[string]any{
		"type": secretType,
		"keys": len(data),
	}
}

func extractNamespaceFields(u *unstructured.Unstructured) map[string]any {
	phase, found, _ := unstructured.NestedString(u.Object, "status", "phase")
	if !found || phase == "" {
		phase = models.ValueUnknown
	}
	return map[string]any{
		"status": phase,
	}
}

func extractPersistentVolumeFields(u *unstructured.Unstructured) map[string]any {
	phase, found, _ := unstructured.NestedString(u.Object, "status", "phase")
	if !found || phase == "" {
		phase = models.ValueUnknown
	}
	capacity, found, _ := unstructured.NestedString(u.Object, "spec", "capacity", "storage")
	if !found || capacity == "" {
		capacity = models.ValueUnknown
	}
	accessModes, _, _ := unstructured.NestedStringSlice(u.Object, "spec", "accessModes")
	reclaimPolicy, _, _ := unstructured.NestedString(u.Object, "spec", "persistentVolumeReclaimPolicy")

	claim := models.ValueNone
	claimName, _, _ := unstructured.NestedString(u.Object, "spec", "claimRef", "name")
	claimNamespace, _, _ := unstructured.NestedString(u.Object, "spec", "claimRef", "namespace")
	if claimName != "" {
		claim = claimNamespace + "/" + claimName
	}

	return map[string]any{
		"status":         phase,
		"capacity":       capacity,
		"access_modes":   accessModes,
		"reclaim_policy": reclaimPolicy,
		"claim":          claim,
	}
}

func extractPersistentVolumeClaimFields(u *unstructured.Unstructured) map[string]any {
	phase, found, _ := unstructured.NestedString(u.Object, "status", "phase")
	if !found || phase == "" {
		phase = models.ValueUnknown
	}
	volume, found, _ := unstructured.NestedString(u.Object, "spec", "volumeName")
	if !found || volume == "" {
		volume = models.ValueNone
	}
	capacity, found, _ := unstructured.NestedString(u.Object, "status", "capacity", "storage")
	if !found || capacity == "" {
		capacity = models.ValueUnknown
	}
	storageClass, _, _ := unstructured.NestedString(u.Object, "spec", "storageClassName")

	return map[string]any{
		"status":        phase,
		"volume":        volume,
		"capacity":      capacity,
		"storage_class": storageClass,
	}
}

func extractIngressFields(u *unstructured.Unstructured) map[string]any {
	class, found, _ := unstructured.NestedString(u.Object, "spec", "ingressClassName")
	if !found || class == "" {
		class = models.ValueNone
	}

	var hosts []string
	rules, _, _ := unstructured.NestedSlice(u.Object, "spec", "rules")
	for _, r := range rules {
		rMap, ok := r.(map[string]any)
		if !ok {
			continue
		}
		if host, _, _ := unstructured.NestedString(rMap, "host"); host != "" {
			hosts = append(hosts, host)
		}
	}
	if len(hosts) == 0 {
		hosts = []string{"*"}
	}

	return map[string]any{
		"class": class,
		"hosts": hosts,
	}
}

func extractJobFields(u *unstructured.Unstructured) map[string]any {
	completions, found, _ := unstructured.NestedInt64(u.Object, "spec", "completions")
	if !found {
		completions = 1
	}
	succeeded, _, _ := unstructured.NestedInt64(u.Object, "status", "succeeded")
	active, _, _ := unstructured.NestedInt64(u.Object, "status", "active")
	failed, _, _ := unstructured.NestedInt64(u.Object, "status", "failed")

	status := "Running"
	switch {
	case succeeded >= completions:
		status = "Complete"
	case failed > 0 && active == 0:
		status = "Failed"
	case active == 0 && succeeded == 0:
		status = "Pending"
	}

	return map[string]any{
		"status":      status,
		"completions": fmt.Sprintf("%d/%d", succeeded, completions),
		"active":      active,
		"failed":      failed,
	}
}

func extractCronJobFields(u *unstructured.Unstructured) map[string]any {
	schedule, found, _ := unstructured.NestedString(u.Object, "spec", "schedule")
	if !found || schedule == "" {
		schedule = models.ValueUnknown
	}
	suspend, _, _ := unstructured.NestedBool(u.Object, "spec", "suspend")
	lastSchedule, found, _ := unstructured.NestedString(u.Object, "status", "lastScheduleTime")
	if !found || lastSchedule == "" {
		lastSchedule = models.ValueNone
	}
	active, _, _ := unstructured.NestedSlice(u.Object, "status", "active")

	return map[string]any{
		"schedule":      schedule,
		"suspend":       suspend,
		"last_schedule": lastSchedule,
		"active":        len(active),
	}
}

func extractLeaseFields(u *unstructured.Unstructured) map[string]any {
	holder, found, _ := unstructured.NestedString(u.Object, "spec", "holderIdentity")
	if !found || holder == "" {
		holder = models.ValueNone
	}
	return map[string]any{
		"holder": holder,
	}
}

func extractPriorityClassFields(u *unstructured.Unstructured) map[string]any {
	value, _, _ := unstructured.NestedInt64(u.Object, "value")
	globalDefault, _, _ := unstructured.NestedBool(u.Object, "globalDefault")
	return map[string]any{
		"value":          value,
		"global_default": globalDefault,
	}
}
