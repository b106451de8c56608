package loader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	clienttesting "k8s.io/client-go/testing"

	"github.com/kubeglass/kubeglass-backend/internal/k8s"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFakeDynamic(objects ...runtime.Object) *dynamicfake.FakeDynamicClient {
	scheme := runtime.NewScheme()
	return dynamicfake.NewSimpleDynamicClientWithCustomListKinds(scheme,
		map[schema.GroupVersionResource]string{
			{Version: "v1", Resource: "pods"}:       "PodList",
			{Version: "v1", Resource: "services"}:   "ServiceList",
			{Version: "v1", Resource: "namespaces"}: "NamespaceList",
			{Group: "apiextensions.k8s.io", Version: "v1", Resource: "customresourcedefinitions"}: "CustomResourceDefinitionList",
		}, objects...)
}

func podObject(name, namespace string) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "v1",
		"kind":       "Pod",
		"metadata": map[string]any{
			"name":              name,
			"namespace":         namespace,
			"uid":               name + "-uid",
			"creationTimestamp": time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
			"labels":            map[string]any{"app": name},
		},
		"status": map[string]any{"phase": "Running"},
	}}
}

func namespaceObject(name string) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "v1",
		"kind":       "Namespace",
		"metadata":   map[string]any{"name": name},
		"status":     map[string]any{"phase": "Active"},
	}}
}

func crdObject(name string) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "apiextensions.k8s.io/v1",
		"kind":       "CustomResourceDefinition",
		"metadata":   map[string]any{"name": name},
	}}
}

func newTestWorker(dyn *dynamicfake.FakeDynamicClient, kind workerKind, resourceType, namespace, query string) *worker {
	cfg := ConfigFor(resourceType)
	cfg.Namespace = namespace
	return &worker{
		id:          "test-op",
		kind:        kind,
		cfg:         cfg,
		query:       query,
		client:      k8s.NewClientWith(nil, dyn),
		cache:       NewStore(16),
		log:         discardLogger(),
		staleMaxAge: defaultStaleMaxAge,
		fanoutCap:   defaultFanoutCap,
	}
}

func TestWorker_ScopedLoad(t *testing.T) {
	dyn := newFakeDynamic(
		podObject("web-0", "default"),
		podObject("web-1", "default"),
		podObject("other", "team-a"),
	)
	w := newTestWorker(dyn, kindLoad, "pods", "default", "")

	res := w.run(context.Background())
	if res == nil || !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.TotalCount != 2 {
		t.Errorf("expected 2 pods from default, got %d", res.TotalCount)
	}
	if res.FromCache {
		t.Error("first load must not come from cache")
	}
	for _, item := range res.Items {
		if item.Namespace != "default" {
			t.Errorf("scoped load leaked namespace %q", item.Namespace)
		}
		if item.ResourceType != "pods" {
			t.Errorf("record type wrong: %q", item.ResourceType)
		}
	}

	// identical second run is answered from cache
	res2 := w.run(context.Background())
	if res2 == nil || !res2.FromCache {
		t.Fatalf("expected cached result, got %+v", res2)
	}
	if res2.TotalCount != 2 {
		t.Errorf("cached result item count wrong: %d", res2.TotalCount)
	}
}

func TestWorker_FanOutSkipsFailingNamespace(t *testing.T) {
	dyn := newFakeDynamic(
		namespaceObject("default"),
		namespaceObject("team-a"),
		namespaceObject("team-b"),
		podObject("p1", "default"),
		podObject("p2", "team-a"),
		podObject("p3", "team-b"),
	)
	dyn.PrependReactor("list", "pods", func(action clienttesting.Action) (bool, runtime.Object, error) {
		if action.GetNamespace() == "team-b" {
			return true, nil, apierrors.NewForbidden(
				schema.GroupResource{Resource: "pods"}, "", errors.New("rbac denied"))
		}
		return false, nil, nil
	})

	w := newTestWorker(dyn, kindLoad, "pods", "", "")
	res := w.run(context.Background())
	if res == nil || !res.Success {
		t.Fatalf("one failing namespace must not abort the fan-out: %+v", res)
	}
	if res.TotalCount != 2 {
		t.Errorf("expected pods from the 2 healthy namespaces, got %d", res.TotalCount)
	}
	for _, item := range res.Items {
		if item.Namespace == "team-b" {
			t.Error("forbidden namespace leaked results")
		}
	}
}

func TestWorker_ClusterScopedIgnoresNamespace(t *testing.T) {
	dyn := newFakeDynamic(crdObject("widgets.example.com"))
	w := newTestWorker(dyn, kindLoad, "customresourcedefinitions", "team-a", "")

	res := w.run(context.Background())
	if res == nil || !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.TotalCount != 1 || res.Items[0].Name != "widgets.example.com" {
		t.Errorf("cluster-scoped list must ignore the namespace argument: %+v", res.Items)
	}
}

func TestWorker_TimeoutServesStaleCache(t *testing.T) {
	dyn := newFakeDynamic()
	dyn.PrependReactor("list", "pods", func(clienttesting.Action) (bool, runtime.Object, error) {
		return true, nil, context.DeadlineExceeded
	})

	w := newTestWorker(dyn, kindLoad, "pods", "default", "")
	w.cfg.CacheTTL = time.Millisecond
	w.cache.Put("pods", w.cacheKey(), makeRecords("pods", 3), w.cfg.CacheTTL)
	time.Sleep(5 * time.Millisecond)

	res := w.run(context.Background())
	if res == nil || !res.Success {
		t.Fatalf("expected degraded success, got %+v", res)
	}
	if !res.FromCache || res.TotalCount != 3 {
		t.Errorf("expected 3 stale items from cache, got %+v", res)
	}
	if res.Metadata["stale_fallback"] != true {
		t.Errorf("stale fallback must be tagged: %v", res.Metadata)
	}
}

func TestWorker_TimeoutWithoutCacheReturnsTaggedEmpty(t *testing.T) {
	dyn := newFakeDynamic()
	dyn.PrependReactor("list", "pods", func(clienttesting.Action) (bool, runtime.Object, error) {
		return true, nil, context.DeadlineExceeded
	})

	w := newTestWorker(dyn, kindLoad, "pods", "default", "")
	res := w.run(context.Background())
	if res == nil || !res.Success {
		t.Fatalf("timeout must degrade to an empty success, got %+v", res)
	}
	if res.TotalCount != 0 {
		t.Errorf("expected no items, got %d", res.TotalCount)
	}
	if res.Metadata["timeout_fallback"] != true {
		t.Errorf("timeout fallback must be tagged: %v", res.Metadata)
	}
	if detail, _ := res.Metadata["error_detail"].(string); detail == "" {
		t.Error("the underlying error must be preserved in metadata")
	}
}

func TestWorker_RequestTimeoutBoundsSlowCall(t *testing.T) {
	dyn := newFakeDynamic(podObject("web-0", "default"))
	dyn.PrependReactor("list", "pods", func(clienttesting.Action) (bool, runtime.Object, error) {
		time.Sleep(60 * time.Millisecond)
		return false, nil, nil
	})

	w := newTestWorker(dyn, kindLoad, "pods", "default", "")
	w.cfg.RequestTimeout = 10 * time.Millisecond

	res := w.run(context.Background())
	if res == nil || !res.Success {
		t.Fatalf("per-call timeout must degrade, not fail hard: %+v", res)
	}
	if res.TotalCount != 0 {
		t.Errorf("a call that blew its budget must not deliver items, got %d", res.TotalCount)
	}
	if res.Metadata["timeout_fallback"] != true {
		t.Errorf("per-call timeout must be tagged like any timeout: %v", res.Metadata)
	}
}

func TestWorker_RequestTimeoutBoundsOneNamespaceInFanOut(t *testing.T) {
	dyn := newFakeDynamic(
		namespaceObject("default"),
		namespaceObject("team-a"),
		podObject("p1", "default"),
		podObject("p2", "team-a"),
	)
	dyn.PrependReactor("list", "pods", func(action clienttesting.Action) (bool, runtime.Object, error) {
		if action.GetNamespace() == "team-a" {
			time.Sleep(60 * time.Millisecond)
		}
		return false, nil, nil
	})

	w := newTestWorker(dyn, kindLoad, "pods", "", "")
	w.cfg.RequestTimeout = 10 * time.Millisecond

	res := w.run(context.Background())
	if res == nil || !res.Success {
		t.Fatalf("one slow namespace must not abort the fan-out: %+v", res)
	}
	if res.TotalCount != 1 || res.Items[0].Namespace != "default" {
		t.Errorf("slow namespace must be dropped, fast one kept: %+v", res.Items)
	}
}

func TestWorker_NotFoundIsEmptySuccess(t *testing.T) {
	dyn := newFakeDynamic()
	dyn.PrependReactor("list", "pods", func(clienttesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewNotFound(schema.GroupResource{Resource: "pods"}, "")
	})

	w := newTestWorker(dyn, kindLoad, "pods", "default", "")
	res := w.run(context.Background())
	if res == nil || !res.Success {
		t.Fatalf("unsupported type must be an empty success, got %+v", res)
	}
	if res.Metadata["not_supported"] != true {
		t.Errorf("expected not_supported tag: %v", res.Metadata)
	}
}

func TestWorker_ForbiddenIsExplicitFailure(t *testing.T) {
	dyn := newFakeDynamic()
	dyn.PrependReactor("list", "pods", func(clienttesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewForbidden(
			schema.GroupResource{Resource: "pods"}, "", errors.New("rbac denied"))
	})

	w := newTestWorker(dyn, kindLoad, "pods", "default", "")
	res := w.run(context.Background())
	if res == nil || res.Success {
		t.Fatalf("RBAC denial must fail explicitly, got %+v", res)
	}
	if !strings.Contains(res.ErrorMessage, "access denied") {
		t.Errorf("error message should name the denial: %q", res.ErrorMessage)
	}
	if len(res.Items) != 0 {
		t.Error("failed result must carry no items")
	}
}

func TestWorker_CancelledDuringFetchWritesNothing(t *testing.T) {
	dyn := newFakeDynamic(podObject("web-0", "default"))
	w := newTestWorker(dyn, kindLoad, "pods", "default", "")
	dyn.PrependReactor("list", "pods", func(clienttesting.Action) (bool, runtime.Object, error) {
		w.cancel()
		return false, nil, nil
	})

	if res := w.run(context.Background()); res != nil {
		t.Fatalf("cancelled worker must report nothing, got %+v", res)
	}
	if _, ok := w.cache.Get("pods", w.cacheKey(), time.Hour); ok {
		t.Error("cancelled worker must not write the cache")
	}
}

func TestWorker_NormalizeAllSkipsMalformed(t *testing.T) {
	objs := []unstructured.Unstructured{
		*podObject("a", "default"),
		{Object: map[string]any{"apiVersion": "v1", "kind": "Pod"}}, // no name
		*podObject("b", "default"),
	}
	w := newTestWorker(newFakeDynamic(), kindLoad, "pods", "default", "")
	records := w.normalizeAll(context.Background(), objs)
	if len(records) != 2 {
		t.Errorf("malformed object must be skipped, not fatal: got %d records", len(records))
	}
}

func TestWorker_SearchFiltersAndTags(t *testing.T) {
	dyn := newFakeDynamic(
		podObject("nginx-7f4b9", "default"),
		podObject("redis-0", "default"),
	)
	w := newTestWorker(dyn, kindSearch, "pods", "default", "NGINX")
	w.fanoutCap = searchFanoutCap

	res := w.run(context.Background())
	if res == nil || !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.TotalCount != 1 || res.Items[0].Name != "nginx-7f4b9" {
		t.Fatalf("expected only the nginx pod, got %+v", res.Items)
	}
	if res.Items[0].Fields["search_matched"] != true {
		t.Error("matched record must be tagged")
	}
	if res.Metadata["search_query"] != "NGINX" {
		t.Errorf("result should echo the query: %v", res.Metadata)
	}
}

func TestWorker_SearchCacheKeyIncludesQuery(t *testing.T) {
	load := newTestWorker(newFakeDynamic(), kindLoad, "pods", "default", "")
	search := newTestWorker(newFakeDynamic(), kindSearch, "pods", "default", "nginx")
	other := newTestWorker(newFakeDynamic(), kindSearch, "pods", "default", "redis")

	if load.cacheKey() == search.cacheKey() {
		t.Error("search results must not collide with plain loads")
	}
	if search.cacheKey() == other.cacheKey() {
		t.Error("different queries must use different cache keys")
	}
}

func TestPrioritizeNamespaces(t *testing.T) {
	in := []string{"zebra", "kube-system", "alpha", "default", "beta"}
	got := prioritizeNamespaces(in, 4)
	want := []string{"default", "kube-system", "alpha", "beta"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
