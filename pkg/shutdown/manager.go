package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	shutdownDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shutdown_duration_seconds",
		Help:    "Total time taken to shutdown gracefully",
		Buckets: []float64{1, 5, 10, 15, 20, 25, 30},
	})

	componentShutdownDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "component_shutdown_duration_seconds",
		Help:    "Time taken to shutdown individual components",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15, 20, 25, 30},
	}, []string{"component"})

	shutdownErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shutdown_errors_total",
		Help: "Total number of shutdown errors by component",
	}, []string{"component"})

	gracefulShutdownsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graceful_shutdowns_total",
		Help: "Total number of graceful shutdowns",
	})
)

// ShutdownFunc shuts down a single component.
type ShutdownFunc func(context.Context) error

// Component is a registered shutdown hook.
type Component struct {
	Name         string
	ShutdownFunc ShutdownFunc
}

// Manager coordinates graceful shutdown of service components.
type Manager struct {
	logger     *zap.Logger
	components []Component
	mu         sync.Mutex
	timeout    time.Duration
}

// NewManager creates a shutdown manager with the given overall timeout.
func NewManager(logger *zap.Logger, timeout time.Duration) *Manager {
	return &Manager{
		logger:     logger,
		components: make([]Component, 0),
		timeout:    timeout,
	}
}

// Register adds a shutdown function. Register dependencies first: the
// database before the servers that use it.
func (sm *Manager) Register(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.components = append(sm.components, Component{
		Name:         name,
		ShutdownFunc: fn,
	})

	sm.logger.Debug("registered shutdown component",
		zap.String("component", name),
		zap.Int("registration_order", len(sm.components)),
	)
}

// WaitForShutdown blocks until SIGINT or SIGTERM, then runs Shutdown.
func (sm *Manager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	sm.logger.Info("received shutdown signal",
		zap.String("signal", sig.String()),
		zap.Duration("timeout", sm.timeout),
	)

	sm.Shutdown()
}

// Shutdown runs every registered shutdown function, bounded by the
// manager timeout.
func (sm *Manager) Shutdown() {
	gracefulShutdownsTotal.Inc()
	shutdownStart := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	sm.logger.Info("starting graceful shutdown",
		zap.Int("component_count", len(sm.components)),
		zap.Duration("timeout", sm.timeout),
	)

	errors := sm.shutdownComponents(ctx)

	shutdownElapsed := time.Since(shutdownStart)
	shutdownDuration.Observe(shutdownElapsed.Seconds())

	if len(errors) > 0 {
		sm.logger.Error("graceful shutdown completed with errors",
			zap.Int("error_count", len(errors)),
			zap.Duration("elapsed", shutdownElapsed),
		)
		for component, err := range errors {
			sm.logger.Error("component shutdown error",
				zap.String("component", component),
				zap.Error(err),
			)
		}
	} else {
		sm.logger.Info("graceful shutdown completed",
			zap.Duration("elapsed", shutdownElapsed),
		)
	}
}

// shutdownComponents runs every shutdown function in reverse registration
// order (LIFO) and collects per-component errors.
func (sm *Manager) shutdownComponents(ctx context.Context) map[string]error {
	sm.mu.Lock()
	components := make([]Component, len(sm.components))
	copy(components, sm.components)
	sm.mu.Unlock()

	errors := make(map[string]error)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := len(components) - 1; i >= 0; i-- {
			comp := components[i]
			start := time.Now()

			sm.logger.Info("shutting down component", zap.String("component", comp.Name))

			if err := comp.ShutdownFunc(ctx); err != nil {
				errors[comp.Name] = err
				shutdownErrors.WithLabelValues(comp.Name).Inc()
				sm.logger.Error("component shutdown failed",
					zap.String("component", comp.Name),
					zap.Error(err),
					zap.Duration("elapsed", time.Since(start)),
				)
			} else {
				sm.logger.Info("component shut down",
					zap.String("component", comp.Name),
					zap.Duration("elapsed", time.Since(start)),
				)
			}

			componentShutdownDuration.WithLabelValues(comp.Name).Observe(time.Since(start).Seconds())
		}
	}()

	select {
	case <-done:
		sm.logger.Info("all components shut down")
	case <-ctx.Done():
		sm.logger.Warn("shutdown timeout exceeded",
			zap.Duration("timeout", sm.timeout),
		)
	}

	return errors
}

// RegisterHTTPServer registers anything with a context-aware Shutdown method.
func (sm *Manager) RegisterHTTPServer(name string, server interface{ Shutdown(context.Context) error }) {
	sm.Register(name, server.Shutdown)
}

// RegisterCloser registers a component with a Close() error method.
func (sm *Manager) RegisterCloser(name string, closer interface{ Close() error }) {
	sm.Register(name, func(ctx context.Context) error {
		return closer.Close()
	})
}

// RegisterFunc registers a plain shutdown function.
func (sm *Manager) RegisterFunc(name string, fn func() error) {
	sm.Register(name, func(ctx context.Context) error {
		return fn()
	})
}

// RegisterNoErr registers a shutdown function with no error return.
func (sm *Manager) RegisterNoErr(name string, fn func()) {
	sm.Register(name, func(ctx context.Context) error {
		fn()
		return nil
	})
}
