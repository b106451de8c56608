package loader

import (
	"encoding/json"
	"hash/fnv"
	"strings"

	"github.com/kubeglass/kubeglass-backend/internal/models"
)

// queryHash scopes search cache keys so different queries never collide.
func queryHash(query string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(query))))
	return h.Sum32()
}

// filterRecords keeps records matching the case-insensitive substring query
// and tags every survivor. An empty query matches everything.
func filterRecords(records []*models.Record, query string) []*models.Record {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return records
	}
	matched := make([]*models.Record, 0, len(records))
	for _, rec := range records {
		if recordMatches(rec, q) {
			rec.Fields["search_matched"] = true
			matched = append(matched, rec)
		}
	}
	return matched
}

// recordMatches checks name, namespace, label keys and values, the extracted
// fields, and the serialized spec of the raw payload. q must already be
// lowercased.
func recordMatches(rec *models.Record, q string) bool {
	if strings.Contains(strings.ToLower(rec.Name), q) {
		return true
	}
	if strings.Contains(strings.ToLower(rec.Namespace), q) {
		return true
	}
	for k, v := range rec.Labels {
		if strings.Contains(strings.ToLower(k), q) || strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	if data, err := json.Marshal(rec.Fields); err == nil {
		if strings.Contains(strings.ToLower(string(data)), q) {
			return true
		}
	}
	if spec := rawSpec(rec.Raw); len(spec) > 0 {
		if strings.Contains(strings.ToLower(string(spec)), q) {
			return true
		}
	}
	return false
}

func rawSpec(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var obj struct {
		Spec json.RawMessage `json:"spec"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	return obj.Spec
}
