package loader

import (
	"fmt"
	"testing"
	"time"

	"github.com/kubeglass/kubeglass-backend/internal/models"
)

func makeRecords(resourceType string, n int) []*models.Record {
	out := make([]*models.Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &models.Record{
			Name:         fmt.Sprintf("%s-%d", resourceType, i),
			ResourceType: resourceType,
			Fields:       map[string]any{},
		})
	}
	return out
}

func TestStore_PutThenGetWithinTTL(t *testing.T) {
	store := NewStore(16)
	items := makeRecords("pods", 3)
	store.Put("pods", "all|100", items, 15*time.Second)

	got, ok := store.Get("pods", "all|100", 15*time.Second)
	if !ok {
		t.Fatal("expected immediate cache hit")
	}
	if len(got) != 3 {
		t.Errorf("expected 3 items, got %d", len(got))
	}
}

func TestStore_GetPastMaxAgeMisses(t *testing.T) {
	store := NewStore(16)
	store.Put("pods", "all|100", makeRecords("pods", 1), 15*time.Second)

	time.Sleep(20 * time.Millisecond)
	if _, ok := store.Get("pods", "all|100", 10*time.Millisecond); ok {
		t.Error("expected miss for entry older than max age")
	}
}

func TestStore_StaleReadAfterNormalMiss(t *testing.T) {
	store := NewStore(16)
	store.Put("pods", "all|100", makeRecords("pods", 2), 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	if _, ok := store.Get("pods", "all|100", 10*time.Millisecond); ok {
		t.Fatal("expected the normal read to miss")
	}
	// the same entry still serves a degraded read with a larger bound
	got, ok := store.Get("pods", "all|100", time.Hour)
	if !ok {
		t.Fatal("expected the stale read to hit")
	}
	if len(got) != 2 {
		t.Errorf("expected 2 items from stale read, got %d", len(got))
	}
}

func TestStore_GetUnknownKeyMisses(t *testing.T) {
	store := NewStore(16)
	if _, ok := store.Get("pods", "nope", time.Hour); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestStore_PutOverwrites(t *testing.T) {
	store := NewStore(16)
	store.Put("pods", "all|100", makeRecords("pods", 5), time.Minute)
	store.Put("pods", "all|100", makeRecords("pods", 1), time.Minute)

	got, ok := store.Get("pods", "all|100", time.Minute)
	if !ok {
		t.Fatal("expected hit")
	}
	if len(got) != 1 {
		t.Errorf("expected the second put to win, got %d items", len(got))
	}
}

func TestStore_ClearDropsOnlyThatType(t *testing.T) {
	store := NewStore(16)
	store.Put("pods", "all|100", makeRecords("pods", 1), time.Minute)
	store.Put("pods", "default|100", makeRecords("pods", 1), time.Minute)
	store.Put("services", "all|50", makeRecords("services", 1), time.Minute)

	if removed := store.Clear("pods"); removed != 2 {
		t.Errorf("expected 2 entries removed, got %d", removed)
	}
	if _, ok := store.Get("pods", "all|100", time.Minute); ok {
		t.Error("pods entry should be gone")
	}
	if _, ok := store.Get("services", "all|50", time.Minute); !ok {
		t.Error("services entry should survive")
	}
}

func TestStore_CapacityEvictsOldest(t *testing.T) {
	store := NewStore(2)
	store.Put("pods", "a", makeRecords("pods", 1), time.Minute)
	store.Put("pods", "b", makeRecords("pods", 1), time.Minute)
	store.Put("pods", "c", makeRecords("pods", 1), time.Minute)

	if _, ok := store.Get("pods", "a", time.Minute); ok {
		t.Error("oldest entry should have been evicted at capacity")
	}
	if _, ok := store.Get("pods", "c", time.Minute); !ok {
		t.Error("newest entry should be present")
	}
}

func TestStore_OptimizeKeepsWarmEntries(t *testing.T) {
	store := NewStore(16)
	store.Put("pods", "cold", makeRecords("pods", 1), time.Millisecond)
	store.Put("services", "warm", makeRecords("services", 1), time.Hour)
	time.Sleep(10 * time.Millisecond)

	removed := store.Optimize(0)
	if removed != 1 {
		t.Errorf("expected 1 entry removed, got %d", removed)
	}
	if _, ok := store.Get("services", "warm", time.Hour); !ok {
		t.Error("warm entry must survive the optimize pass")
	}
}

func TestStore_Stats(t *testing.T) {
	store := NewStore(16)
	store.Put("pods", "all|100", makeRecords("pods", 4), time.Minute)
	store.Put("pods", "default|100", makeRecords("pods", 2), time.Minute)
	store.Put("nodes", "all|25", makeRecords("nodes", 3), time.Minute)

	stats := store.Stats()
	if stats.Entries != 3 {
		t.Errorf("expected 3 entries, got %d", stats.Entries)
	}
	if stats.ItemsByType["pods"] != 6 {
		t.Errorf("expected 6 pod items, got %d", stats.ItemsByType["pods"])
	}
	if stats.EntriesByType["nodes"] != 1 {
		t.Errorf("expected 1 nodes entry, got %d", stats.EntriesByType["nodes"])
	}
}
