package k8s

import (
	"context"
	"errors"
	"net"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// IsNotFound reports a 404-class error: the resource type or its API group
// is not served by this cluster.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if apierrors.IsNotFound(err) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "the server could not find the requested resource") ||
		strings.Contains(msg, "no matches for kind")
}

// IsForbidden reports a 403-class error: RBAC denied the request.
func IsForbidden(err error) bool {
	return apierrors.IsForbidden(err)
}

// IsTimeoutOrConnection reports a transient transport failure: deadline
// exceeded, server-side timeout, or a broken network path.
func IsTimeoutOrConnection(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if apierrors.IsTimeout(err) || apierrors.IsServerTimeout(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, ErrBreakerOpen) {
		return true
	}
	msg := err.Error()
	for _, sub := range []string{
		"connection refused",
		"connection reset",
		"i/o timeout",
		"no such host",
		"dial tcp",
	} {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}
