package loader

import (
	"log/slog"
	"sync"

	"github.com/kubeglass/kubeglass-backend/internal/config"
	"github.com/kubeglass/kubeglass-backend/internal/k8s"
)

// The process-wide loader instance. Initialized once at startup and torn
// down on shutdown; everything in between goes through GetLoader. Tests
// construct their own instances with New instead of using this.
var (
	singletonMu sync.Mutex
	singleton   *Loader
)

// InitLoader builds and installs the process-wide loader. Calling it again
// without an intervening ShutdownLoader returns the existing instance.
func InitLoader(client *k8s.Client, cfg *config.Config, log *slog.Logger) *Loader {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	if singleton == nil {
		singleton = New(client, cfg, log)
	}
	return singleton
}

// GetLoader returns the process-wide loader, or nil before InitLoader.
func GetLoader() *Loader {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	return singleton
}

// ShutdownLoader shuts down and discards the process-wide loader.
func ShutdownLoader() {
	singletonMu.Lock()
	l := singleton
	singleton = nil
	singletonMu.Unlock()
	if l != nil {
		l.Shutdown()
	}
}
