package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/garyjia/approval-bridge/internal/application/dispatcher"
	"github.com/garyjia/approval-bridge/internal/application/port"
	"github.com/garyjia/approval-bridge/internal/application/service"
	"github.com/garyjia/approval-bridge/internal/infrastructure/cache"
	"github.com/garyjia/approval-bridge/internal/infrastructure/external/engine"
	"github.com/garyjia/approval-bridge/internal/infrastructure/metrics"
	"github.com/garyjia/approval-bridge/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/approval-bridge/internal/infrastructure/worker"
	"github.com/garyjia/approval-bridge/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components start in dependency order and close in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	db        *database.DB
	txManager *sqlite.DB
	procMsgs  port.ProcMsgRepository

	// Observability
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	// Infrastructure - External
	gateway *engine.Client
	redis   *redis.Client
	lark    *LarkBundle
	archive *ArchiveBundle

	// Application
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle

	// Workers
	workers *worker.WorkerManager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components in dependency order:
// 1. Database, migrations and repositories
// 2. Metrics and the process engine gateway
// 3. Redis, Lark and the archive store
// 4. Event dispatcher and application services
// 5. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	if err := c.initGateway(); err != nil {
		return fmt.Errorf("failed to initialize gateway: %w", err)
	}
	c.logger.Info("Engine gateway initialized")

	if err := c.initExternalClients(); err != nil {
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	c.logger.Info("External clients initialized")

	if err := c.initServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	if err := c.initWorkers(); err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers initialized and started")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	// Waits for in-flight backlog signals before their Redis client goes away.
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		} else {
			c.logger.Info("Redis closed")
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		err := errors.Join(errs...)
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)), zap.Error(err))
		return fmt.Errorf("container closed with %d errors: %w", len(errs), err)
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	record := func(name string, err error) {
		if err != nil {
			status.Components[name] = ComponentHealth{Healthy: false, Message: err.Error()}
			status.Overall = false
			return
		}
		status.Components[name] = ComponentHealth{Healthy: true}
	}

	if c.db == nil {
		record("database", errors.New("not initialized"))
	} else {
		record("database", c.db.PingContext(ctx))
	}

	if c.redis != nil {
		record("redis", c.redis.Ping(ctx).Err())
	}

	if c.workers == nil {
		record("workers", errors.New("not initialized"))
	} else if !c.workers.IsRunning() {
		record("workers", errors.New("not running"))
	} else {
		record("workers", nil)
	}

	return status
}

func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.db = bundle.DB
	c.txManager = bundle.TransactionMgr
	c.procMsgs = bundle.ProcMsgs
	return nil
}

func (c *Container) initGateway() error {
	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.metrics = ProvideMetrics(c.registry)

	gateway, err := ProvideGateway(&c.config.Engine, c.metrics, c.logger)
	if err != nil {
		return err
	}
	c.gateway = gateway
	return nil
}

func (c *Container) initExternalClients() error {
	rdb, err := ProvideRedis(c.ctx, &c.config.Redis, c.logger)
	if err != nil {
		return err
	}
	c.redis = rdb

	larkBundle, err := ProvideLarkClients(&c.config.Lark, c.redis, &c.config.Redis, c.logger)
	if err != nil {
		return err
	}
	c.lark = larkBundle

	archive, err := ProvideArchive(c.ctx, &c.config.Archive, c.logger)
	if err != nil {
		return err
	}
	c.archive = archive

	return nil
}

func (c *Container) initServices() error {
	c.dispatcher = ProvideDispatcher(c.logger)

	publisher := cache.NewBacklogPublisher(c.redis, c.config.Redis.BacklogChannel, c.logger)
	SubscribeHandlers(c.dispatcher, c.gateway, publisher, c.metrics)

	services, err := ProvideServices(&ServiceDeps{
		Gateway:    c.gateway,
		Lark:       c.lark,
		ProcMsgs:   c.procMsgs,
		Archive:    c.archive,
		Dispatcher: c.dispatcher,
		Dispatch:   &c.config.Dispatch,
		LarkCfg:    &c.config.Lark,
		TxManager:  c.txManager,
		Export:     &c.config.Export,
		Token:      &c.config.Token,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}

	c.services = services
	return nil
}

func (c *Container) initWorkers() error {
	c.workers = ProvideWorkers(c.archive, &c.config.Export, c.logger)

	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	return nil
}

// Getters for accessing container components

// ProcMsgs returns the message link repository.
func (c *Container) ProcMsgs() port.ProcMsgRepository {
	return c.procMsgs
}

// Gateway returns the process engine client.
func (c *Container) Gateway() *engine.Client {
	return c.gateway
}

// Lark returns the Lark clients.
func (c *Container) Lark() *LarkBundle {
	return c.lark
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Metrics returns the service collectors.
func (c *Container) Metrics() *metrics.Metrics {
	return c.metrics
}

// Registry returns the Prometheus registry served on /metrics.
func (c *Container) Registry() *prometheus.Registry {
	return c.registry
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// ServiceLogger returns the container's logger behind the service.Logger interface.
func (c *Container) ServiceLogger() service.Logger {
	return &zapLoggerAdapter{logger: c.logger}
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the service.Logger interface.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// dispatcherLoggerAdapter adapts zap.Logger to the dispatcher.Logger interface.
type dispatcherLoggerAdapter struct {
	logger *zap.Logger
}

func (a *dispatcherLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug(msg, convertToZapFields(keysAndValues...)...)
}

func (a *dispatcherLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, ok := keysAndValues[i+1].(error); ok {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
