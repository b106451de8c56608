package loader

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/kubeglass/kubeglass-backend/internal/config"
	"github.com/kubeglass/kubeglass-backend/internal/k8s"
	"github.com/kubeglass/kubeglass-backend/internal/models"
	"github.com/kubeglass/kubeglass-backend/internal/pkg/metrics"
)

const defaultWorkerLimit = 8

// operation tracks one submitted worker in the in-flight registry.
type operation struct {
	id     string
	key    string
	worker *worker
	ctx    context.Context
	cancel context.CancelFunc
}

// Loader is the public entry point for resource loading. All submission
// methods are non-blocking: they resolve a config, cancel any in-flight
// worker for the same (type, namespace) key, hand a fresh worker to the
// bounded pool, and return a tracking id. Results arrive on subscriber
// channels, exactly one completion or error per operation; superseded
// operations deliver nothing.
type Loader struct {
	client *k8s.Client
	cache  *Store
	log    *slog.Logger

	staleMaxAge time.Duration
	fanoutCap   int
	searchCap   int
	pool        *semaphore.Weighted
	wg          sync.WaitGroup

	mu          sync.Mutex
	inflight    map[string]*operation
	stats       map[string]*rollingStats
	subscribers map[int]chan models.LoadEvent
	nextSubID   int
	closed      bool
}

// New builds a loader around an authenticated cluster client. cfg may be nil
// for defaults; log may be nil for the default slog logger.
func New(client *k8s.Client, cfg *config.Config, log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}

	workers := defaultWorkerLimit
	cacheCapacity := defaultCacheCapacity
	staleMaxAge := defaultStaleMaxAge
	fanoutCap := defaultFanoutCap
	searchCap := searchFanoutCap
	if cfg != nil {
		if cfg.LoaderWorkers > 0 {
			workers = cfg.LoaderWorkers
		}
		if cfg.CacheMaxEntries > 0 {
			cacheCapacity = cfg.CacheMaxEntries
		}
		if cfg.StaleMaxAgeSec > 0 {
			staleMaxAge = time.Duration(cfg.StaleMaxAgeSec) * time.Second
		}
		if cfg.FanoutNamespaces > 0 {
			fanoutCap = cfg.FanoutNamespaces
		}
		if cfg.SearchNamespaces > 0 {
			searchCap = cfg.SearchNamespaces
		}
	}

	return &Loader{
		client:      client,
		cache:       NewStore(cacheCapacity),
		log:         log,
		staleMaxAge: staleMaxAge,
		fanoutCap:   fanoutCap,
		searchCap:   searchCap,
		pool:        semaphore.NewWeighted(int64(workers)),
		inflight:    make(map[string]*operation),
		stats:       make(map[string]*rollingStats),
		subscribers: make(map[int]chan models.LoadEvent),
	}
}

// LoadResourcesAsync submits a load for the resource type, optionally scoped
// to a namespace, and returns the operation id. custom overrides the tiered
// config per call. Returns "" after Shutdown.
func (l *Loader) LoadResourcesAsync(resourceType, namespace string, custom *ResourceConfig) string {
	return l.dispatch(kindLoad, resourceType, namespace, "", custom)
}

// SearchResourcesAsync submits a load that filters normalized items by a
// case-insensitive substring query before returning.
func (l *Loader) SearchResourcesAsync(resourceType, namespace, query string) string {
	return l.dispatch(kindSearch, resourceType, namespace, query, nil)
}

func (l *Loader) dispatch(kind workerKind, resourceType, namespace, query string, custom *ResourceConfig) string {
	resourceType = k8s.NormalizeResourceType(resourceType)
	cfg := ConfigFor(resourceType).merge(custom)
	cfg.Namespace = namespace
	if k8s.IsClusterScoped(resourceType) {
		// namespace argument is meaningless for cluster-scoped types
		cfg.Namespace = ""
	}

	fanoutCap := l.fanoutCap
	if kind == kindSearch {
		// search must be comprehensive
		fanoutCap = l.searchCap
	}

	opID := uuid.NewString()
	w := &worker{
		id:          opID,
		kind:        kind,
		cfg:         cfg,
		query:       query,
		client:      l.client,
		cache:       l.cache,
		log:         l.log,
		staleMaxAge: l.staleMaxAge,
		fanoutCap:   fanoutCap,
	}
	ctx, cancel := context.WithCancel(context.Background())
	op := &operation{
		id:     opID,
		key:    resourceType + "|" + scopeLabel(cfg.Namespace),
		worker: w,
		ctx:    ctx,
		cancel: cancel,
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		cancel()
		return ""
	}
	// most-recent-request-wins: a newer load for the same key supersedes and
	// silences any in-flight one
	if prev, ok := l.inflight[op.key]; ok {
		prev.worker.cancel()
		prev.cancel()
	}
	l.inflight[op.key] = op
	l.publishLocked(models.LoadEvent{
		Kind:         models.EventLoadStarted,
		OperationID:  opID,
		ResourceType: resourceType,
		Namespace:    cfg.Namespace,
	})
	l.mu.Unlock()

	l.wg.Add(1)
	go l.execute(op)
	return opID
}

func (l *Loader) execute(op *operation) {
	defer l.wg.Done()
	defer op.cancel()

	if err := l.pool.Acquire(op.ctx, 1); err != nil {
		// superseded or shut down while queued
		l.finish(op, nil)
		return
	}
	defer l.pool.Release(1)

	metrics.LoadsInFlight.Inc()
	defer metrics.LoadsInFlight.Dec()

	l.finish(op, op.worker.run(op.ctx))
}

// finish removes the operation from the registry and, unless it was
// superseded, records stats and publishes its single notification.
func (l *Loader) finish(op *operation, res *models.LoadResult) {
	resourceType := op.worker.cfg.ResourceType

	l.mu.Lock()
	if l.inflight[op.key] == op {
		delete(l.inflight, op.key)
	}
	superseded := op.worker.isCancelled()
	if superseded || res == nil {
		l.mu.Unlock()
		metrics.LoadsTotal.WithLabelValues(resourceType, "cancelled").Inc()
		return
	}

	l.statsFor(resourceType).record(res.LoadTimeMs, res.Success)

	evt := models.LoadEvent{
		OperationID:  op.id,
		ResourceType: resourceType,
		Namespace:    op.worker.cfg.Namespace,
	}
	if res.Success {
		evt.Kind = models.EventLoadCompleted
		evt.Result = res
	} else {
		evt.Kind = models.EventLoadError
		evt.ErrorMessage = res.ErrorMessage
	}
	l.publishLocked(evt)
	l.mu.Unlock()

	metrics.LoadsTotal.WithLabelValues(resourceType, outcomeLabel(res)).Inc()
	metrics.LoadDurationSeconds.WithLabelValues(resourceType).Observe(res.LoadTimeMs / 1000.0)
}

func outcomeLabel(res *models.LoadResult) string {
	if !res.Success {
		return "error"
	}
	if res.Metadata != nil {
		if res.Metadata["timeout_fallback"] == true || res.Metadata["stale_fallback"] == true {
			return "timeout_fallback"
		}
		if res.Metadata["not_supported"] == true {
			return "not_found"
		}
	}
	return "success"
}

// Subscribe registers an event channel. The returned function unsubscribes
// and closes the channel; events are dropped, not blocked on, when a
// subscriber falls behind.
func (l *Loader) Subscribe() (<-chan models.LoadEvent, func()) {
	ch := make(chan models.LoadEvent, 64)

	l.mu.Lock()
	id := l.nextSubID
	l.nextSubID++
	l.subscribers[id] = ch
	l.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if c, ok := l.subscribers[id]; ok {
				delete(l.subscribers, id)
				close(c)
			}
		})
	}
	return ch, unsubscribe
}

// publishLocked delivers an event to all subscribers without blocking.
// Caller holds l.mu, which also serializes against unsubscribe closing a
// channel mid-send.
func (l *Loader) publishLocked(evt models.LoadEvent) {
	for _, ch := range l.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// CancelAll cancels every tracked in-flight worker. Used on shutdown and on
// cluster-context switch.
func (l *Loader) CancelAll() {
	l.mu.Lock()
	for _, op := range l.inflight {
		op.worker.cancel()
		op.cancel()
	}
	l.inflight = make(map[string]*operation)
	l.mu.Unlock()
}

// Shutdown cancels all work, waits for workers to drain, and closes
// subscriber channels. The loader accepts no submissions afterwards.
func (l *Loader) Shutdown() {
	l.CancelAll()
	l.wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	for id, ch := range l.subscribers {
		delete(l.subscribers, id)
		close(ch)
	}
}

// ClearCache invalidates cached results for a resource type. An empty type
// runs the optimize pass, dropping only entries past their TTL plus the
// stale grace window — never a blind full wipe. Returns entries removed.
func (l *Loader) ClearCache(resourceType string) int {
	if resourceType == "" {
		return l.cache.Optimize(l.staleMaxAge)
	}
	return l.cache.Clear(k8s.NormalizeResourceType(resourceType))
}

// CacheStats reports result cache occupancy.
func (l *Loader) CacheStats() CacheStats {
	return l.cache.Stats()
}

// PerformanceStats summarizes the rolling window of recent operations for a
// resource type.
func (l *Loader) PerformanceStats(resourceType string) PerformanceStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.stats[k8s.NormalizeResourceType(resourceType)]; ok {
		return s.summary()
	}
	return PerformanceStats{}
}

// statsFor returns the rolling stats for a type. Caller holds l.mu.
func (l *Loader) statsFor(resourceType string) *rollingStats {
	s, ok := l.stats[resourceType]
	if !ok {
		s = newRollingStats(statsWindow)
		l.stats[resourceType] = s
	}
	return s
}
