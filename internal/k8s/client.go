// Package k8s wraps cluster access for the resource loading engine: a dynamic
// client with per-call timeouts, retry on transient API errors, an optional
// outbound rate limit, and a circuit breaker per cluster connection.
package k8s

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Client wraps Kubernetes client-go for the loader. All list traffic goes
// through the dynamic client so every resource type shares one code path.
type Client struct {
	Clientset kubernetes.Interface
	Dynamic   dynamic.Interface
	Config    *rest.Config
	Context   string

	// Timeout bounds each outbound API call; 0 means the request context is
	// the only bound.
	Timeout time.Duration
	limiter *rate.Limiter
	breaker *Breaker

	healthMu        sync.RWMutex
	lastSuccessTime time.Time
	lastError       error
}

// NewClient builds a client from a kubeconfig path and context name. An empty
// path tries in-cluster config first, then ~/.kube/config.
func NewClient(kubeconfigPath, contextName string) (*Client, error) {
	var config *rest.Config
	var err error

	if kubeconfigPath == "" {
		config, err = rest.InClusterConfig()
		if err != nil {
			homeDir, _ := os.UserHomeDir()
			if homeDir != "" {
				kubeconfigPath = filepath.Join(homeDir, ".kube", "config")
			}
		}
	}

	if config == nil {
		config, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
			&clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfigPath},
			&clientcmd.ConfigOverrides{CurrentContext: contextName},
		).ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to build config: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	dynamicClient, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	return &Client{
		Clientset:       clientset,
		Dynamic:         dynamicClient,
		Config:          config,
		Context:         contextName,
		breaker:         NewBreaker(contextName),
		lastSuccessTime: time.Now(),
	}, nil
}

// NewClientWith wires a client around injected interfaces. Tests pass fake
// clientsets here; the breaker and health tracking behave as in production.
func NewClientWith(clientset kubernetes.Interface, dyn dynamic.Interface) *Client {
	return &Client{
		Clientset:       clientset,
		Dynamic:         dyn,
		breaker:         NewBreaker(""),
		lastSuccessTime: time.Now(),
	}
}

// SetTimeout sets the per-call timeout for outbound API calls.
func (c *Client) SetTimeout(d time.Duration) {
	c.Timeout = d
}

// SetLimiter installs a token-bucket rate limit on outbound API calls.
func (c *Client) SetLimiter(l *rate.Limiter) {
	c.limiter = l
}

func (c *Client) waitRateLimit(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout)
	}
	return ctx, func() {}
}

// ListResources lists objects of the given resource type. An empty namespace
// issues an unscoped list; cluster-scoped callers must pass "". The call is
// bounded by the client timeout, retried on 5xx/429, and guarded by the
// circuit breaker. 404/403 from the API server pass through unchanged.
func (c *Client) ListResources(ctx context.Context, resourceType, namespace string, opts metav1.ListOptions) (*unstructured.UnstructuredList, error) {
	if err := c.waitRateLimit(ctx); err != nil {
		return nil, err
	}

	gvr, err := GVRForType(resourceType)
	if err != nil {
		return nil, err
	}

	var result *unstructured.UnstructuredList
	err = c.breaker.Execute(ctx, func() error {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()
		var fnErr error
		result, fnErr = withRetry(ctx, defaultRetryAttempts, func() (*unstructured.UnstructuredList, error) {
			if namespace != "" {
				return c.Dynamic.Resource(gvr).Namespace(namespace).List(ctx, opts)
			}
			return c.Dynamic.Resource(gvr).List(ctx, opts)
		})
		return fnErr
	})

	c.updateHealth(err)
	return result, err
}

// ListNamespaces returns namespace names, up to limit (0 = no limit). Used by
// workers for multi-namespace fan-out enumeration.
func (c *Client) ListNamespaces(ctx context.Context, limit int) ([]string, error) {
	if err := c.waitRateLimit(ctx); err != nil {
		return nil, err
	}

	var names []string
	err := c.breaker.Execute(ctx, func() error {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()
		list, fnErr := withRetry(ctx, defaultRetryAttempts, func() (*unstructured.UnstructuredList, error) {
			return c.Dynamic.Resource(namespacesGVR).List(ctx, metav1.ListOptions{})
		})
		if fnErr != nil {
			return fnErr
		}
		names = make([]string, 0, len(list.Items))
		for _, item := range list.Items {
			names = append(names, item.GetName())
			if limit > 0 && len(names) >= limit {
				break
			}
		}
		return nil
	})

	c.updateHealth(err)
	if err != nil {
		return nil, err
	}
	return names, nil
}

// TestConnection verifies connectivity with a one-item namespace list.
func (c *Client) TestConnection(ctx context.Context) error {
	if err := c.waitRateLimit(ctx); err != nil {
		return err
	}

	err := c.breaker.Execute(ctx, func() error {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()
		return doWithRetry(ctx, defaultRetryAttempts, func() error {
			_, err := c.Clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{Limit: 1})
			return err
		})
	})

	c.updateHealth(err)
	return err
}

func (c *Client) updateHealth(err error) {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()
	if err == nil {
		c.lastSuccessTime = time.Now()
		c.lastError = nil
	} else {
		c.lastError = err
	}
}

// HealthStatus reports connection health: last success time, last error, and
// the circuit breaker state.
func (c *Client) HealthStatus() (healthy bool, lastSuccess time.Time, lastErr error, state BreakerState) {
	c.healthMu.RLock()
	defer c.healthMu.RUnlock()

	state = c.breaker.State()
	healthy = state == BreakerClosed && c.lastError == nil
	return healthy, c.lastSuccessTime, c.lastError, state
}
