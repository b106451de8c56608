package loader

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/kubeglass/kubeglass-backend/internal/k8s"
	"github.com/kubeglass/kubeglass-backend/internal/models"
	"github.com/kubeglass/kubeglass-backend/internal/pkg/metrics"
)

const (
	// normalizeConcurrency bounds parallel sub-batches so CPU-bound record
	// extraction does not starve the network fetch.
	normalizeConcurrency = 3
	// batchTimeout bounds one normalization sub-batch; a batch that exceeds
	// it is dropped rather than hanging the worker.
	batchTimeout = 10 * time.Second

	defaultStaleMaxAge = time.Hour
	defaultFanoutCap   = 20
	searchFanoutCap    = 50
)

type workerKind int

const (
	kindLoad workerKind = iota
	kindSearch
)

// worker executes one load or search operation: cache check, fetch (scoped
// or fanned out), parallel normalization, cache write. Cancellation is
// cooperative: the flag is checked between stages and at sub-batch
// boundaries, and a cancelled worker returns nil without writing cache.
type worker struct {
	id    string
	kind  workerKind
	cfg   ResourceConfig
	query string

	client      *k8s.Client
	cache       *Store
	log         *slog.Logger
	staleMaxAge time.Duration
	fanoutCap   int

	cancelled atomic.Bool
}

func (w *worker) cancel() {
	w.cancelled.Store(true)
}

func (w *worker) isCancelled() bool {
	return w.cancelled.Load()
}

// scopeLabel is the namespace part of cache and in-flight keys.
func scopeLabel(namespace string) string {
	if namespace == "" {
		return "all"
	}
	return namespace
}

func (w *worker) cacheKey() string {
	key := fmt.Sprintf("%s|%d", scopeLabel(w.cfg.Namespace), w.cfg.BatchSize)
	if w.kind == kindSearch {
		key += fmt.Sprintf("|q%08x", queryHash(w.query))
	}
	return key
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

// run executes the worker state machine and returns the result, or nil when
// the worker was cancelled (superseded operations report nothing).
func (w *worker) run(ctx context.Context) *models.LoadResult {
	start := time.Now()
	resourceType := w.cfg.ResourceType
	key := w.cacheKey()

	if items, ok := w.cache.Get(resourceType, key, w.cfg.CacheTTL); ok {
		return w.successResult(items, start, true)
	}
	if w.isCancelled() {
		return nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()
	objs, err := w.fetch(fetchCtx)
	if err != nil {
		if w.isCancelled() {
			return nil
		}
		return w.resultForError(err, key, start)
	}
	if w.isCancelled() {
		return nil
	}

	records := w.normalizeAll(ctx, objs)
	if w.kind == kindSearch {
		records = filterRecords(records, w.query)
	}
	if w.isCancelled() {
		return nil
	}

	w.cache.Put(resourceType, key, records, w.cfg.CacheTTL)
	return w.successResult(records, start, false)
}

func (w *worker) successResult(items []*models.Record, start time.Time, fromCache bool) *models.LoadResult {
	res := &models.LoadResult{
		Success:      true,
		ResourceType: w.cfg.ResourceType,
		Items:        items,
		TotalCount:   len(items),
		LoadTimeMs:   elapsedMs(start),
		FromCache:    fromCache,
	}
	if w.kind == kindSearch {
		res.Metadata = map[string]any{"search_query": w.query}
	}
	return res
}

// requestCtx bounds one network call within the operation; the operation
// Timeout still caps the whole fetch.
func (w *worker) requestCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.cfg.RequestTimeout > 0 {
		return context.WithTimeout(ctx, w.cfg.RequestTimeout)
	}
	return ctx, func() {}
}

// list issues one bounded list call. A reply that lands after its own budget
// counts as a timeout, so a single slow call never eats the operation budget.
func (w *worker) list(ctx context.Context, namespace string) ([]unstructured.Unstructured, error) {
	rctx, cancel := w.requestCtx(ctx)
	defer cancel()
	items, err := w.client.ListResources(rctx, w.cfg.ResourceType, namespace, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	if rctx.Err() != nil && ctx.Err() == nil {
		return nil, rctx.Err()
	}
	return items.Items, nil
}

// fetch retrieves raw objects. Cluster-scoped types always get one unscoped
// list regardless of any namespace argument; namespaced types get a scoped
// list, or a fan-out across namespaces when none was given.
func (w *worker) fetch(ctx context.Context) ([]unstructured.Unstructured, error) {
	if k8s.IsClusterScoped(w.cfg.ResourceType) {
		return w.list(ctx, "")
	}
	if w.cfg.Namespace != "" {
		return w.list(ctx, w.cfg.Namespace)
	}
	return w.fanOut(ctx)
}

// fanOut queries every namespace (capped, system namespaces first) and merges
// the results. A failing namespace is logged and skipped; it never aborts the
// whole fetch. Result order across namespaces is not stable.
func (w *worker) fanOut(ctx context.Context) ([]unstructured.Unstructured, error) {
	nsCtx, nsCancel := w.requestCtx(ctx)
	namespaces, err := w.client.ListNamespaces(nsCtx, 0)
	nsCancel()
	if err != nil {
		return nil, err
	}
	namespaces = prioritizeNamespaces(namespaces, w.fanoutCap)

	var mu sync.Mutex
	var out []unstructured.Unstructured

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.MaxConcurrentRequests)
	for _, ns := range namespaces {
		if w.isCancelled() {
			break
		}
		g.Go(func() error {
			if w.isCancelled() {
				return nil
			}
			items, listErr := w.list(gctx, ns)
			if listErr != nil {
				w.log.Warn("namespace fetch failed, skipping",
					"resource_type", w.cfg.ResourceType,
					"namespace", ns,
					"error", listErr)
				return nil
			}
			mu.Lock()
			out = append(out, items...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// systemNamespacePriority orders well-known namespaces to the front of the
// fan-out so the most interesting scopes survive the cap.
var systemNamespacePriority = []string{"default", "kube-system", "kube-public", "kube-node-lease"}

func prioritizeNamespaces(namespaces []string, cap int) []string {
	seen := make(map[string]bool, len(namespaces))
	for _, ns := range namespaces {
		seen[ns] = true
	}

	ordered := make([]string, 0, len(namespaces))
	for _, ns := range systemNamespacePriority {
		if seen[ns] {
			ordered = append(ordered, ns)
			seen[ns] = false
		}
	}
	rest := make([]string, 0, len(namespaces))
	for _, ns := range namespaces {
		if seen[ns] {
			rest = append(rest, ns)
			seen[ns] = false
		}
	}
	sort.Strings(rest)
	ordered = append(ordered, rest...)

	if cap > 0 && len(ordered) > cap {
		ordered = ordered[:cap]
	}
	return ordered
}

// normalizeAll partitions objects into sub-batches and normalizes them in
// parallel. Malformed objects are skipped; a sub-batch that exceeds its
// timeout is dropped entirely. Concatenation order is not guaranteed.
func (w *worker) normalizeAll(ctx context.Context, objs []unstructured.Unstructured) []*models.Record {
	if len(objs) == 0 {
		return []*models.Record{}
	}

	batchSize := w.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = len(objs)
	}

	var mu sync.Mutex
	out := make([]*models.Record, 0, len(objs))

	g := new(errgroup.Group)
	g.SetLimit(normalizeConcurrency)
	for begin := 0; begin < len(objs); begin += batchSize {
		if w.isCancelled() {
			break
		}
		batch := objs[begin:min(begin+batchSize, len(objs))]
		g.Go(func() error {
			batchCtx, cancel := context.WithTimeout(ctx, batchTimeout)
			defer cancel()

			now := time.Now()
			records := make([]*models.Record, 0, len(batch))
			for i := range batch {
				if batchCtx.Err() != nil || w.isCancelled() {
					// drop the partial batch rather than hang the worker
					return nil
				}
				if rec, ok := normalizeObject(&batch[i], w.cfg.ResourceType, now); ok {
					records = append(records, rec)
				}
			}
			mu.Lock()
			out = append(out, records...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// resultForError maps a fetch failure onto the degraded-result policy:
// timeouts try stale cache and then degrade to a tagged empty success,
// unsupported types are empty success, RBAC denials and everything else are
// explicit failures.
func (w *worker) resultForError(err error, key string, start time.Time) *models.LoadResult {
	resourceType := w.cfg.ResourceType
	loadTime := elapsedMs(start)

	switch {
	case k8s.IsTimeoutOrConnection(err):
		if items, ok := w.cache.Get(resourceType, key, w.staleMaxAge); ok {
			metrics.StaleFallbacksTotal.WithLabelValues(resourceType).Inc()
			w.log.Warn("fetch failed, serving stale cache",
				"resource_type", resourceType, "error", err)
			return &models.LoadResult{
				Success:      true,
				ResourceType: resourceType,
				Items:        items,
				TotalCount:   len(items),
				LoadTimeMs:   loadTime,
				FromCache:    true,
				Metadata:     map[string]any{"stale_fallback": true},
			}
		}
		// Intentional degrade: an unreachable cluster renders as an empty
		// page instead of an error. The metadata tag and this log line keep
		// it distinguishable from a genuinely empty cluster.
		w.log.Warn("fetch timed out with no stale cache, returning empty result",
			"resource_type", resourceType, "error", err)
		return &models.LoadResult{
			Success:      true,
			ResourceType: resourceType,
			Items:        []*models.Record{},
			LoadTimeMs:   loadTime,
			Metadata: map[string]any{
				"timeout_fallback": true,
				"error_detail":     err.Error(),
			},
		}

	case k8s.IsNotFound(err):
		// resource type not served by this cluster; nothing to alarm about
		return &models.LoadResult{
			Success:      true,
			ResourceType: resourceType,
			Items:        []*models.Record{},
			LoadTimeMs:   loadTime,
			Metadata:     map[string]any{"not_supported": true},
		}

	case k8s.IsForbidden(err):
		return models.FailedResult(resourceType,
			fmt.Sprintf("access denied listing %s: check RBAC permissions", resourceType), loadTime)

	default:
		return models.FailedResult(resourceType,
			fmt.Sprintf("failed to list %s: %v", resourceType, err), loadTime)
	}
}
