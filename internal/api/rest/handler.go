// Package rest is the HTTP adapter the dashboard frontend talks to. It only
// translates requests into loader submissions and loader events into
// responses; all loading semantics live in internal/loader.
package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"sigs.k8s.io/yaml"

	"github.com/kubeglass/kubeglass-backend/internal/k8s"
	"github.com/kubeglass/kubeglass-backend/internal/loader"
	"github.com/kubeglass/kubeglass-backend/internal/models"
)

const defaultWaitTimeout = 90 * time.Second

// Handler manages HTTP request handlers around the loader.
type Handler struct {
	loader *loader.Loader
}

// NewHandler creates a new HTTP handler.
func NewHandler(l *loader.Loader) *Handler {
	return &Handler{loader: l}
}

// SetupRoutes configures API routes.
func SetupRoutes(router *mux.Router, h *Handler) {
	// Fire-and-forget submissions; results arrive via the event channel.
	router.HandleFunc("/loads", h.SubmitLoad).Methods("POST")

	// Synchronous convenience endpoints for the resource tables.
	router.HandleFunc("/resources/{type}", h.GetResources).Methods("GET")
	router.HandleFunc("/resources/{type}/export", h.ExportResources).Methods("GET")

	// Introspection and maintenance.
	router.HandleFunc("/stats/{type}", h.GetPerformanceStats).Methods("GET")
	router.HandleFunc("/cache", h.GetCacheStats).Methods("GET")
	router.HandleFunc("/cache", h.ClearCache).Methods("DELETE")
	router.HandleFunc("/loads", h.CancelLoads).Methods("DELETE")

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}).Methods("GET")
}

// SubmitLoad handles POST /loads.
func (h *Handler) SubmitLoad(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ResourceType string `json:"resource_type"`
		Namespace    string `json:"namespace"`
		SearchQuery  string `json:"search_query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}
	if req.ResourceType == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "resource_type is required")
		return
	}

	var opID string
	if req.SearchQuery != "" {
		opID = h.loader.SearchResourcesAsync(req.ResourceType, req.Namespace, req.SearchQuery)
	} else {
		opID = h.loader.LoadResourcesAsync(req.ResourceType, req.Namespace, nil)
	}
	if opID == "" {
		respondError(w, http.StatusServiceUnavailable, ErrCodeInternalError, "loader is shut down")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"operation_id": opID})
}

// GetResources handles GET /resources/{type}?namespace=&q=.
func (h *Handler) GetResources(w http.ResponseWriter, r *http.Request) {
	resourceType := mux.Vars(r)["type"]
	namespace := r.URL.Query().Get("namespace")
	query := r.URL.Query().Get("q")

	result, err := h.loadAndWait(resourceType, namespace, query, defaultWaitTimeout)
	if err != nil {
		status, code := http.StatusInternalServerError, ErrCodeInternalError
		if errors.Is(err, errWaitTimeout) {
			status, code = http.StatusGatewayTimeout, ErrCodeTimeout
		} else if errors.Is(err, errSuperseded) {
			status, code = http.StatusConflict, ErrCodeConflict
		} else if strings.Contains(err.Error(), "access denied") {
			status, code = http.StatusForbidden, ErrCodeForbidden
		}
		respondError(w, status, code, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ExportResources handles GET /resources/{type}/export?format=yaml|json.
func (h *Handler) ExportResources(w http.ResponseWriter, r *http.Request) {
	resourceType := mux.Vars(r)["type"]
	namespace := r.URL.Query().Get("namespace")
	format := r.URL.Query().Get("format")

	result, err := h.loadAndWait(resourceType, namespace, "", defaultWaitTimeout)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	if format == "yaml" {
		data, err := yaml.Marshal(result.Items)
		if err != nil {
			respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}
	respondJSON(w, http.StatusOK, result.Items)
}

// GetPerformanceStats handles GET /stats/{type}.
func (h *Handler) GetPerformanceStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.loader.PerformanceStats(mux.Vars(r)["type"]))
}

// GetCacheStats handles GET /cache.
func (h *Handler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.loader.CacheStats())
}

// ClearCache handles DELETE /cache?resource_type=. No type runs the optimize
// pass instead of a full wipe.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	removed := h.loader.ClearCache(r.URL.Query().Get("resource_type"))
	respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// CancelLoads handles DELETE /loads.
func (h *Handler) CancelLoads(w http.ResponseWriter, r *http.Request) {
	h.loader.CancelAll()
	w.WriteHeader(http.StatusNoContent)
}

var (
	errWaitTimeout = errors.New("timed out waiting for load result")
	errSuperseded  = errors.New("superseded by a newer request for the same resources")
)

// loadAndWait submits a load and blocks until its event arrives. A superseded
// operation delivers no completion of its own, so a later load_started for the
// same scope means ours was replaced and the waiter must not sit out the full
// timeout.
func (h *Handler) loadAndWait(resourceType, namespace, query string, timeout time.Duration) (*models.LoadResult, error) {
	events, unsubscribe := h.loader.Subscribe()
	defer unsubscribe()

	normalized := k8s.NormalizeResourceType(resourceType)
	scope := namespace
	if k8s.IsClusterScoped(normalized) {
		scope = ""
	}

	var opID string
	if query != "" {
		opID = h.loader.SearchResourcesAsync(resourceType, namespace, query)
	} else {
		opID = h.loader.LoadResourcesAsync(resourceType, namespace, nil)
	}
	if opID == "" {
		return nil, errors.New("loader is shut down")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return nil, errors.New("loader is shut down")
			}
			if evt.OperationID != opID {
				if evt.Kind == models.EventLoadStarted && evt.ResourceType == normalized && evt.Namespace == scope {
					return nil, errSuperseded
				}
				continue
			}
			switch evt.Kind {
			case models.EventLoadCompleted:
				return evt.Result, nil
			case models.EventLoadError:
				return nil, errors.New(evt.ErrorMessage)
			}
		case <-timer.C:
			return nil, errWaitTimeout
		}
	}
}
