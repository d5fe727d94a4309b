// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

// Package app assembles the security core: vault, session authority, threat
// classifier, audit ledger, security monitor, retention scheduler, and the
// observability and notification bridges around them.
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/eventbus"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
	natsx "github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/nats"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/observability"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/pkg/logger"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/repository/memory"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/repository/postgres"
	redisrepo "github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/repository/redis"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/scheduler"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/services/ledger"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/services/monitor"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/services/session"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/services/threat"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/services/vault"
)

// ShutdownTimeout bounds graceful shutdown and one-shot maintenance commands.
const ShutdownTimeout = 30 * time.Second

// auditBackend is what the ledger, classifier, and retention scheduler all
// need from one persistence layer.
type auditBackend interface {
	ledger.Store
	threat.IncidentStore
	scheduler.Purger
}

// App owns every component and their startup/shutdown ordering.
type App struct {
	config *Config
	logger *logger.Logger

	db          *postgres.DB
	redisClient *redisrepo.Client
	auditStore  auditBackend

	bus           *eventbus.Bus
	metrics       *observability.Registry
	metricsBridge *observability.Bridge
	metricsServer *http.Server

	natsClient *natsx.Client
	notifier   *natsx.Notifier

	Vault      *vault.Vault
	Classifier *threat.Classifier
	Authority  *session.Authority
	Operators  *session.OperatorRegistry
	Tokens     *session.TokenService
	Ledger     *ledger.Ledger
	Monitor    *monitor.Monitor
	Retention  *scheduler.Retention

	systemCtx *models.SecurityContext
}

// New builds the application graph from validated configuration. Nothing is
// started yet; call Start.
func New(ctx context.Context, cfg *Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}

	a := &App{
		config: cfg,
		logger: log.Named("app"),
		bus:    eventbus.New(),
	}

	if err := a.initStores(ctx); err != nil {
		return nil, err
	}
	if err := a.initVault(); err != nil {
		a.closeStores()
		return nil, err
	}
	if err := a.initNATS(ctx); err != nil {
		a.closeStores()
		return nil, err
	}
	if err := a.initServices(ctx, log); err != nil {
		a.closeStores()
		return nil, err
	}
	a.initObservability()

	return a, nil
}

// initStores opens the audit and session backends selected in configuration.
func (a *App) initStores(ctx context.Context) error {
	switch strings.ToLower(a.config.Store.Audit) {
	case "postgres":
		db, err := postgres.New(ctx, a.config.Database.URL, postgres.Options{
			MaxOpenConns:    a.config.Database.MaxOpenConns,
			MaxIdleConns:    a.config.Database.MaxIdleConns,
			ConnMaxLifetime: a.config.Database.ConnMaxLifetime,
			ConnMaxIdleTime: a.config.Database.ConnMaxIdleTime,
		})
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.db = db

		store := postgres.NewAuditStore(db, a.logger)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return fmt.Errorf("ensure audit schema: %w", err)
		}
		a.auditStore = store
	case "memory":
		a.auditStore = memory.NewAuditStore()
	default:
		return fmt.Errorf("unknown audit store: %s", a.config.Store.Audit)
	}

	if strings.EqualFold(a.config.Store.Sessions, "redis") {
		client, err := redisrepo.New(ctx, a.config.Redis.URL, redisrepo.Options{
			PoolSize:     a.config.Redis.PoolSize,
			MinIdleConns: a.config.Redis.MinIdleConns,
			DialTimeout:  a.config.Redis.DialTimeout,
			ReadTimeout:  a.config.Redis.ReadTimeout,
			WriteTimeout: a.config.Redis.WriteTimeout,
		})
		if err != nil {
			a.closeStores()
			return fmt.Errorf("connect redis: %w", err)
		}
		a.redisClient = client
	}

	return nil
}

func (a *App) initVault() error {
	v, err := vault.Open(a.config.Vault.KeyPath, a.logger)
	if err != nil {
		return fmt.Errorf("open vault: %w", err)
	}
	a.Vault = v
	return nil
}

// initNATS connects the optional outbound notifier. A connection failure at
// startup is fatal only because the operator explicitly enabled it.
func (a *App) initNATS(ctx context.Context) error {
	if !a.config.NATS.Enabled {
		return nil
	}

	client := natsx.NewClient(natsx.Config{
		URL:              a.config.NATS.URL,
		Name:             a.config.NATS.Name,
		Token:            a.config.NATS.Token,
		Username:         a.config.NATS.Username,
		Password:         a.config.NATS.Password,
		MaxReconnects:    a.config.NATS.MaxReconnects,
		ReconnectWait:    a.config.NATS.ReconnectWait,
		Timeout:          natsx.DefaultConfig().Timeout,
		PingInterval:     natsx.DefaultConfig().PingInterval,
		MaxPingsOut:      natsx.DefaultConfig().MaxPingsOut,
		ReconnectBufSize: natsx.DefaultConfig().ReconnectBufSize,
	}, a.logger)
	if err := client.Connect(ctx); err != nil {
		return err
	}

	a.natsClient = client
	a.notifier = natsx.NewNotifier(client, a.bus, a.logger)
	return nil
}

func (a *App) initServices(ctx context.Context, log *logger.Logger) error {
	// Mitigation commands go out over NATS when available, otherwise they
	// are only logged.
	var executor threat.MitigationExecutor
	if a.natsClient != nil {
		executor = natsx.NewMitigationPublisher(a.natsClient, log)
	} else {
		executor = &logMitigationExecutor{logger: log.Named("mitigation")}
	}

	a.Classifier = threat.NewClassifier(a.auditStore, executor, a.bus, log)

	// File policies are appended after the defaults: same-key entries
	// override, unlisted defaults (audit:create above all) survive.
	policies := session.DefaultPolicies()
	if a.config.Security.PolicyFile != "" {
		loaded, err := session.LoadPolicyFile(a.config.Security.PolicyFile)
		if err != nil {
			return fmt.Errorf("load policy file: %w", err)
		}
		policies = append(policies, loaded...)
	}

	var sessionStore session.Store
	if a.redisClient != nil {
		sessionStore = redisrepo.NewSessionStore(a.redisClient)
	} else {
		sessionStore = session.NewMemoryStore()
	}

	a.Authority = session.NewAuthority(sessionStore, session.NewPolicyTable(policies), a.Classifier, session.Config{
		SessionTTL:         a.config.Security.SessionTTL,
		SweepInterval:      a.config.Security.SweepInterval,
		MaxSessionsPerUser: a.config.Security.MaxSessionsPerUser,
	}, log)
	a.Operators = session.NewOperatorRegistry(a.Authority)
	a.Tokens = session.NewTokenService(session.TokenConfig{
		Secret:   a.config.Security.JWTSecret,
		TokenTTL: a.config.Security.TokenTTL,
	})

	a.Ledger = ledger.New(a.auditStore, a.Authority, a.Classifier, log)
	if err := a.Ledger.Restore(ctx); err != nil {
		return fmt.Errorf("restore audit chain: %w", err)
	}

	a.systemCtx = systemContext()

	a.Monitor = monitor.New(a.Classifier, a.Ledger, a.Authority, executor, a.bus, a.systemCtx, monitor.Config{
		MonitorInterval:   a.config.Monitor.MonitorInterval,
		MetricsInterval:   a.config.Monitor.MetricsInterval,
		MaxMetricsHistory: a.config.Monitor.MaxMetricsHistory,
		AutoMitigate:      a.config.Monitor.AutoMitigate,
	}, log)

	if a.config.Monitor.SignatureFile != "" {
		signatures, rules, err := monitor.LoadSignatureFile(a.config.Monitor.SignatureFile)
		if err != nil {
			return fmt.Errorf("load signature file: %w", err)
		}
		a.Monitor.SetSignatures(signatures)
		a.Monitor.SetRules(rules)
	}

	retentionPolicies := a.config.Retention.Policies
	if len(retentionPolicies) == 0 {
		retentionPolicies = scheduler.DefaultRetentionPolicies()
	}
	a.Retention = scheduler.New(a.auditStore, a.Ledger, a.systemCtx, &scheduler.Config{
		Schedule: a.config.Retention.Schedule,
		Policies: retentionPolicies,
	}, log)

	return nil
}

func (a *App) initObservability() {
	if !a.config.Metrics.Enabled {
		return
	}

	a.metrics = observability.NewRegistry()
	a.metricsBridge = observability.NewBridge(a.metrics, a.bus)

	mux := http.NewServeMux()
	mux.Handle(a.config.Metrics.Path, a.metrics.Handler())
	a.metricsServer = &http.Server{
		Addr:              a.config.Metrics.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Bus returns the process-internal notification bus.
func (a *App) Bus() *eventbus.Bus {
	return a.bus
}

// ============================================================================
// Lifecycle
// ============================================================================

// Start launches the background loops: session sweeper, monitor, retention
// scheduler, and the metrics listener.
func (a *App) Start(ctx context.Context) error {
	a.Authority.StartSweeper(ctx)
	a.Monitor.Start(ctx)
	if err := a.Retention.Start(); err != nil {
		return err
	}

	if a.metricsServer != nil {
		go func() {
			a.logger.Info("metrics listener started", "addr", a.metricsServer.Addr)
			if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.logger.Error("metrics listener failed", "error", err)
			}
		}()
	}

	a.logger.Info("security core started",
		"audit_store", a.config.Store.Audit,
		"session_store", a.config.Store.Sessions,
		"nats", a.config.NATS.Enabled,
	)
	return nil
}

// Shutdown stops the background loops and closes external connections in
// reverse dependency order.
func (a *App) Shutdown(ctx context.Context) {
	a.logger.Info("shutting down")

	if a.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("metrics listener shutdown failed", "error", err)
		}
		cancel()
	}

	a.Retention.Stop()
	a.Monitor.Stop()
	a.Authority.Stop()

	if a.notifier != nil {
		a.notifier.Close()
	}
	if a.metricsBridge != nil {
		a.metricsBridge.Close()
	}
	if a.natsClient != nil {
		a.natsClient.Close()
	}
	if a.Vault != nil {
		a.Vault.Close()
	}
	a.closeStores()

	a.logger.Info("shutdown complete")
}

func (a *App) closeStores() {
	if a.redisClient != nil {
		a.redisClient.Close()
		a.redisClient = nil
	}
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
}

// systemContext is the identity autonomous components act under. It never
// corresponds to a stored session; permission checks pass because it carries
// the full admin permission set.
func systemContext() *models.SecurityContext {
	roles := []models.Role{models.RoleAdmin}
	return &models.SecurityContext{
		SessionID:   uuid.New(),
		UserID:      "system",
		Username:    "system",
		Roles:       roles,
		Permissions: models.PermissionsForRoles(roles),
		Level:       models.LevelForRoles(roles),
		ExpiresAt:   time.Now().UTC().Add(100 * 365 * 24 * time.Hour),
	}
}

// logMitigationExecutor records mitigation actions without applying them.
// Used when no outbound transport is configured.
type logMitigationExecutor struct {
	logger *logger.Logger
}

func (e *logMitigationExecutor) Execute(_ context.Context, action string, serr *models.SecurityError) error {
	e.logger.Info("mitigation action recorded",
		"action", action,
		"error_id", serr.ID,
		"error_type", string(serr.Type),
		"severity", string(serr.Severity),
	)
	return nil
}
