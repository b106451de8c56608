package loader

import (
	"encoding/json"
	"testing"

	"github.com/kubeglass/kubeglass-backend/internal/models"
)

func searchRecord(name, namespace string, labels map[string]string) *models.Record {
	if labels == nil {
		labels = map[string]string{}
	}
	return &models.Record{
		Name:      name,
		Namespace: namespace,
		Labels:    labels,
		Fields:    map[string]any{},
	}
}

func TestFilterRecords_EmptyQueryMatchesAll(t *testing.T) {
	records := []*models.Record{
		searchRecord("a", "default", nil),
		searchRecord("b", "default", nil),
	}
	got := filterRecords(records, "   ")
	if len(got) != 2 {
		t.Fatalf("expected all records, got %d", len(got))
	}
	// no tagging when nothing was filtered
	if _, tagged := got[0].Fields["search_matched"]; tagged {
		t.Error("empty query must not tag records")
	}
}

func TestFilterRecords_CaseInsensitiveName(t *testing.T) {
	records := []*models.Record{
		searchRecord("nginx-7f4b9", "web", nil),
		searchRecord("redis-0", "cache", nil),
	}
	got := filterRecords(records, "NGINX")
	if len(got) != 1 || got[0].Name != "nginx-7f4b9" {
		t.Fatalf("expected the nginx record, got %v", got)
	}
	if got[0].Fields["search_matched"] != true {
		t.Error("matched record must be tagged")
	}
}

func TestFilterRecords_MatchesNamespaceAndLabels(t *testing.T) {
	records := []*models.Record{
		searchRecord("api", "production", nil),
		searchRecord("worker", "default", map[string]string{"team": "payments"}),
		searchRecord("db", "default", nil),
	}
	if got := filterRecords(records, "produc"); len(got) != 1 || got[0].Name != "api" {
		t.Errorf("namespace match failed: %v", got)
	}
	if got := filterRecords(records, "payments"); len(got) != 1 || got[0].Name != "worker" {
		t.Errorf("label value match failed: %v", got)
	}
	if got := filterRecords(records, "team"); len(got) != 1 || got[0].Name != "worker" {
		t.Errorf("label key match failed: %v", got)
	}
}

func TestFilterRecords_MatchesExtractedFields(t *testing.T) {
	rec := searchRecord("web-0", "default", nil)
	rec.Fields["status"] = "CrashLoopBackOff"
	got := filterRecords([]*models.Record{rec}, "crashloop")
	if len(got) != 1 {
		t.Fatal("expected the crashing pod to match by extracted status")
	}
}

func TestFilterRecords_MatchesRawSpec(t *testing.T) {
	rec := searchRecord("web-0", "default", nil)
	rec.Raw = json.RawMessage(`{"metadata":{"name":"web-0"},"spec":{"nodeName":"gpu-node-3"}}`)
	if got := filterRecords([]*models.Record{rec}, "gpu-node"); len(got) != 1 {
		t.Error("expected a match against the spec sub-document")
	}
	// metadata outside spec is not part of the deep match surface
	rec2 := searchRecord("other", "default", nil)
	rec2.Raw = json.RawMessage(`{"metadata":{"managedFields":"gpu-node-3"},"spec":{}}`)
	if got := filterRecords([]*models.Record{rec2}, "managedfields"); len(got) != 0 {
		t.Error("did not expect a match outside name/namespace/labels/fields/spec")
	}
}

func TestQueryHash(t *testing.T) {
	if queryHash("nginx") != queryHash("  NGINX ") {
		t.Error("hash must normalize case and whitespace")
	}
	if queryHash("nginx") == queryHash("redis") {
		t.Error("different queries must hash differently")
	}
}
