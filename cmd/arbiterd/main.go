// Package main provides the adjudication layer service entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Arbiter-Network/adjudication_layer/applications/observer"
	"github.com/Arbiter-Network/adjudication_layer/infrastructure/config"
	"github.com/Arbiter-Network/adjudication_layer/infrastructure/logging"
	"github.com/Arbiter-Network/adjudication_layer/infrastructure/metrics"
	"github.com/Arbiter-Network/adjudication_layer/internal/health"
	"github.com/Arbiter-Network/adjudication_layer/internal/security"
	"github.com/Arbiter-Network/adjudication_layer/internal/verification"
	"github.com/Arbiter-Network/adjudication_layer/internal/verification/search"
	"github.com/Arbiter-Network/adjudication_layer/internal/verification/strategies"
	"github.com/Arbiter-Network/adjudication_layer/internal/webnav"
)

const serviceName = "arbiterd"

func main() {
	cfg, err := config.Load(os.Getenv("ARBITER_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(serviceName, cfg.Logging.Level, cfg.Logging.Format)
	m := metrics.New(serviceName)
	startTime := time.Now()

	// Security envelope: audit log, identity limiter, command gate.
	auditLog := security.NewAuditLog(security.AuditConfig{
		MaxEvents:     cfg.Security.MaxAuditEvents,
		RetentionDays: cfg.Security.AuditRetentionDays,
		SweepSchedule: security.DefaultAuditConfig().SweepSchedule,
	}, logger, m)
	envelope := security.NewEnvelope(security.EnvelopeConfig{
		JWTSecret:            cfg.Security.JWTSecret,
		RateLimitMaxRequests: cfg.Security.RateLimitMaxRequests,
		RateLimitWindow:      cfg.Security.RateLimitWindow,
		BlockedUsers:         cfg.Security.BlockedUsers,
	}, auditLog, logger, m)
	commandGate := security.NewCommandValidator(security.CommandValidatorConfig{
		AllowedCommands:  cfg.Security.AllowedCommands,
		MaxCommandLength: cfg.Security.MaxCommandLength,
		MaxArgLength:     cfg.Security.MaxArgumentLength,
	})

	// Web navigator.
	extraction := webnav.DefaultExtractionConfig()
	extraction.UserAgent = cfg.WebNavigator.UserAgent
	extraction.Timeout = cfg.WebNavigator.RequestTimeout
	extraction.MaxRedirects = cfg.WebNavigator.MaxRedirects
	extraction.MaxContentLength = int64(cfg.WebNavigator.MaxContentSizeMB) << 20
	extraction.RespectRobotsTxt = cfg.WebNavigator.RespectRobotsTxt

	navigator := webnav.NewNavigator(webnav.NavigatorConfig{
		Extraction: extraction,
		Limiter: webnav.DomainLimiterConfig{
			RequestsPerMinute: cfg.WebNavigator.RequestsPerMinute,
			BackoffMultiplier: cfg.WebNavigator.BackoffMultiplier,
			MaxBackoff:        cfg.WebNavigator.MaxBackoff,
			InitialBackoff:    time.Second,
		},
		Cache: webnav.ContentCacheConfig{
			TTL:       time.Duration(cfg.WebNavigator.CacheTTLHours) * time.Hour,
			MaxSizeMB: cfg.WebNavigator.CacheMaxSizeMB,
		},
		RobotsTTL:          cfg.WebNavigator.RobotsCacheTTL,
		ErrorRateThreshold: cfg.Health.ErrorRateThreshold,
	}, &http.Client{Timeout: cfg.WebNavigator.RequestTimeout}, logger, m)

	// Verification engine with every strategy registered.
	engine := verification.NewEngine(verification.EngineConfig{
		MaxConcurrent:  cfg.Verification.MaxConcurrent,
		DefaultTimeout: cfg.Verification.DefaultTimeout,
		MaxTimeout:     cfg.Verification.MaxTimeout,
		CacheTTL:       cfg.Verification.CacheTTL,
		SweepInterval:  cfg.Verification.SweepInterval,
	}, logger, m)

	credibility := strategies.NewSourceCredibility(cfg.Search.CredibilityCacheTTL)
	engine.Register(strategies.NewFactChecking())
	engine.Register(credibility)
	engine.Register(strategies.NewCrossReference(strategies.CrossReferenceConfig{
		MinConsensus:  cfg.Verification.MinConsensus,
		MaxClaims:     cfg.Search.MaxClaimsPerRequest,
		MinReferences: cfg.Search.MinReferencesPerFact,
		MockFallback:  cfg.Search.EnableMockFallback,
	}, buildProviders(cfg), logger))
	engine.Register(strategies.NewConsistencyCheck())
	engine.Register(strategies.NewLogicalValidation())
	engine.Register(strategies.NewStatisticalValidation())

	// Observer stores and arbiter.
	events := observer.NewEventStore(10000)
	cot := observer.NewCoTStore(10000)
	tasks := observer.NewTaskStore()
	arbiter := observer.NewArbiter(engine, tasks, events, cot, logger, 256)
	arbiter.Start()

	// Health monitor observing the other planes through probes only.
	monitor := health.NewMonitor(health.MonitorConfig{
		CheckInterval:   cfg.Health.CheckInterval,
		MetricsInterval: cfg.Health.MetricsInterval,
		Thresholds: health.Thresholds{
			MemoryUsagePercent: cfg.Health.MemoryThresholdPct,
			CPUUsagePercent:    cfg.Health.CPUThresholdPct,
			ErrorRatePercent:   cfg.Health.ErrorRateThreshold * 100,
			ResponseTime:       cfg.Health.ResponseTimeLimit,
		},
		MaxAlerts: cfg.Health.MaxAlerts,
	}, logger)
	registerProbes(monitor, cfg, engine, navigator, arbiter)
	monitor.SetMetricsCollector(health.SystemMetricsCollector(
		func() float64 { return navigator.Health().ErrorRate },
		func() float64 { return float64(engine.InFlight()) },
	))
	auditLog.OnViolation(func(event security.Event) {
		monitor.RaiseAlert("security", "security violation: "+event.Action, health.StatusDegraded)
	})
	monitor.Start()

	server := observer.NewServer(
		observer.ServerConfig{MetricsPath: cfg.Server.MetricsPath},
		envelope, commandGate, engine, navigator, monitor, arbiter,
		events, cot, tasks, logger, m,
	)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			m.UpdateUptime(startTime)
		}
	}()

	go func() {
		logger.WithFields(map[string]interface{}{"port": cfg.Server.Port}).Info("observer API listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	// Ordered teardown on SIGINT/SIGTERM: drain HTTP, stop arbiter, stop
	// monitor, destroy the engine, stop the audit sweep.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("server shutdown incomplete")
	}

	arbiter.Stop()
	monitor.Stop()
	engine.Destroy()
	credibility.Close()
	auditLog.Stop()

	logger.Info("shutdown complete")
}

// buildProviders wires every search provider with a configured key.
// DuckDuckGo needs no key and is always present.
func buildProviders(cfg *config.Config) []search.Provider {
	client := &http.Client{Timeout: cfg.Search.ProviderTimeout}

	providers := []search.Provider{search.NewDuckDuckGoProvider(client)}
	if cfg.Search.BraveAPIKey != "" {
		providers = append(providers, search.NewBraveProvider(client, cfg.Search.BraveAPIKey))
	}
	if cfg.Search.GoogleAPIKey != "" && cfg.Search.GoogleEngineID != "" {
		providers = append(providers, search.NewGoogleProvider(client, cfg.Search.GoogleAPIKey, cfg.Search.GoogleEngineID))
	}
	if cfg.Search.BingAPIKey != "" {
		providers = append(providers, search.NewBingProvider(client, cfg.Search.BingAPIKey))
	}
	return providers
}

// registerProbes attaches the component probes. Probes close over the
// components' status methods only.
func registerProbes(monitor *health.Monitor, cfg *config.Config, engine *verification.Engine, navigator *webnav.Navigator, arbiter *observer.Arbiter) {
	monitor.RegisterProbe("memory", health.MemoryProbe(cfg.Health.MemoryThresholdPct, 95))
	monitor.RegisterProbe("cpu", health.CPUProbe(cfg.Health.CPUThresholdPct, 98))
	monitor.RegisterProbe("goroutines", health.GoroutineProbe(5000, 20000))

	monitor.RegisterProbe("verification-engine", func(_ context.Context) health.Check {
		inFlight := engine.InFlight()
		status := health.StatusHealthy
		if inFlight >= cfg.Verification.MaxConcurrent {
			status = health.StatusDegraded
		}
		return health.Check{
			Status:  status,
			Message: fmt.Sprintf("%d verifications in flight", inFlight),
			Metadata: map[string]interface{}{
				"in_flight":  inFlight,
				"cache_size": engine.CacheSize(),
			},
		}
	})

	monitor.RegisterProbe("web-navigator", func(_ context.Context) health.Check {
		nav := navigator.Health()
		status := health.StatusHealthy
		switch nav.Status {
		case webnav.StatusUnhealthy:
			status = health.StatusUnhealthy
		case webnav.StatusDegraded:
			status = health.StatusDegraded
		}
		return health.Check{
			Status:  status,
			Message: fmt.Sprintf("error rate %.3f", nav.ErrorRate),
			Metadata: map[string]interface{}{
				"cache_entries": nav.CacheEntries,
				"cache_bytes":   nav.CacheBytes,
			},
		}
	})

	monitor.RegisterProbe("task-queue", func(_ context.Context) health.Check {
		depth := arbiter.QueueDepth()
		status := health.StatusHealthy
		if depth > 200 {
			status = health.StatusDegraded
		}
		return health.Check{
			Status:  status,
			Message: fmt.Sprintf("queue depth %d, arbiter %s", depth, arbiter.State()),
		}
	})
}
