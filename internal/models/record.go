package models

import (
	"encoding/json"
	"time"
)

// Sentinels for fields the source object did not carry. Records promise these
// fields; they are never silently omitted.
const (
	ValueUnknown = "Unknown"
	ValueNone    = "<none>"
)

// Record is one Kubernetes object flattened for dashboard consumption.
// Records are immutable snapshots: built fresh on every load, never mutated
// after they enter the cache.
type Record struct {
	Name         string            `json:"name"`
	Namespace    string            `json:"namespace,omitempty"`
	Age          string            `json:"age"`
	Created      time.Time         `json:"created"`
	Labels       map[string]string `json:"labels"`
	Annotations  map[string]string `json:"annotations"`
	ResourceType string            `json:"resource_type"`
	UID          string            `json:"uid"`
	// Fields holds the type-specific columns (pod status, node roles, ...).
	Fields map[string]any `json:"fields"`
	// Raw is the full serialized source object, or a metadata-only stub when
	// serialization failed.
	Raw json.RawMessage `json:"raw_data,omitempty"`
}

// LoadResult is the outcome of one load or search operation. Immutable once
// constructed; a failed result always carries an empty item list and an
// error message.
type LoadResult struct {
	Success      bool           `json:"success"`
	ResourceType string         `json:"resource_type"`
	Items        []*Record      `json:"items"`
	TotalCount   int            `json:"total_count"`
	LoadTimeMs   float64        `json:"load_time_ms"`
	FromCache    bool           `json:"from_cache"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// FailedResult builds the canonical failure shape for a resource type.
func FailedResult(resourceType, errMsg string, loadTimeMs float64) *LoadResult {
	return &LoadResult{
		Success:      false,
		ResourceType: resourceType,
		Items:        []*Record{},
		LoadTimeMs:   loadTimeMs,
		ErrorMessage: errMsg,
	}
}
