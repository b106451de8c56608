package k8s

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/kubeglass/kubeglass-backend/internal/pkg/metrics"
)

// ErrBreakerOpen is returned while the breaker rejects calls.
var ErrBreakerOpen = errors.New("circuit breaker is open: cluster API unavailable")

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // normal operation
	BreakerOpen                         // failing fast
	BreakerHalfOpen                     // probing for recovery
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker fails fast when the cluster API is unreachable: after 5 consecutive
// transport-level failures it opens for 30 seconds, then admits one probe
// call. API-level client errors (403/404) never trip it.
type Breaker struct {
	mu sync.RWMutex

	failureThreshold int
	openDuration     time.Duration
	halfOpenMaxCalls int
	cluster          string

	state             BreakerState
	failureCount      int
	lastFailureTime   time.Time
	halfOpenCallCount int
}

// NewBreaker creates a breaker with default thresholds, labeled by cluster
// for metrics.
func NewBreaker(cluster string) *Breaker {
	b := &Breaker{
		failureThreshold: 5,
		openDuration:     30 * time.Second,
		halfOpenMaxCalls: 1,
		state:            BreakerClosed,
		cluster:          cluster,
	}
	metrics.BreakerState.WithLabelValues(cluster).Set(float64(BreakerClosed))
	return b
}

func (b *Breaker) setState(newState BreakerState) {
	if b.state == newState {
		return
	}
	metrics.BreakerTransitionsTotal.WithLabelValues(b.cluster, b.state.String(), newState.String()).Inc()
	metrics.BreakerState.WithLabelValues(b.cluster).Set(float64(newState))
	b.state = newState
}

// Execute runs fn under breaker protection.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	b.mu.RLock()
	state := b.state
	b.mu.RUnlock()

	switch state {
	case BreakerOpen:
		b.mu.Lock()
		if time.Since(b.lastFailureTime) >= b.openDuration {
			b.setState(BreakerHalfOpen)
			b.halfOpenCallCount = 0
			state = BreakerHalfOpen
		}
		b.mu.Unlock()

		if state == BreakerOpen {
			return ErrBreakerOpen
		}
		fallthrough

	case BreakerHalfOpen:
		b.mu.Lock()
		if b.halfOpenCallCount >= b.halfOpenMaxCalls {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
		b.halfOpenCallCount++
		b.mu.Unlock()
	}

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		if isTransportFailure(err) {
			b.failureCount++
			b.lastFailureTime = time.Now()
			if b.state == BreakerHalfOpen {
				b.setState(BreakerOpen)
				b.halfOpenCallCount = 0
			} else if b.failureCount >= b.failureThreshold {
				b.setState(BreakerOpen)
			}
		} else {
			// client error; the API server answered, so the path is healthy
			b.failureCount = 0
		}
		return err
	}

	b.failureCount = 0
	if b.state != BreakerClosed {
		b.setState(BreakerClosed)
		b.halfOpenCallCount = 0
	}
	return nil
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// FailureCount returns the consecutive transport failure count.
func (b *Breaker) FailureCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.failureCount
}

// isTransportFailure reports whether err indicates the API server itself is
// unhealthy or unreachable, as opposed to rejecting a particular request.
func isTransportFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if isRetryable(err) {
		return true
	}
	msg := err.Error()
	for _, sub := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"unreachable",
		"no such host",
		"dial tcp",
		"i/o timeout",
	} {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}
