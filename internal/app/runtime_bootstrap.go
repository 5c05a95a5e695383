package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dwizi/fixdesk/internal/catalog"
	"github.com/dwizi/fixdesk/internal/config"
	"github.com/dwizi/fixdesk/internal/connectors"
	"github.com/dwizi/fixdesk/internal/connectors/discord"
	"github.com/dwizi/fixdesk/internal/dispatch"
	"github.com/dwizi/fixdesk/internal/heartbeat"
	"github.com/dwizi/fixdesk/internal/httpapi"
	"github.com/dwizi/fixdesk/internal/memorylog"
	"github.com/dwizi/fixdesk/internal/normalize"
	"github.com/dwizi/fixdesk/internal/ocr"
	"github.com/dwizi/fixdesk/internal/scheduler"
	"github.com/dwizi/fixdesk/internal/session"
	"github.com/dwizi/fixdesk/internal/settings"
	"github.com/dwizi/fixdesk/internal/translate"
	"github.com/dwizi/fixdesk/internal/triage"
	"github.com/dwizi/fixdesk/internal/watcher"
)

func New(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	var heartbeatRegistry *heartbeat.Registry
	if cfg.HeartbeatEnabled {
		heartbeatRegistry = heartbeat.NewRegistry()
		heartbeatRegistry.Starting("runtime", "booting")
		heartbeatRegistry.Starting("dispatch", "initializing")
		heartbeatRegistry.Starting("scheduler", "initializing")
		heartbeatRegistry.Starting("watcher", "initializing")
		heartbeatRegistry.Starting("api", "initializing")
	}

	settingsRuntime, err := settings.NewRuntime(settings.NewFileStore(cfg.SettingsPath), logger.With("component", "settings"))
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if settingsRuntime.Snapshot().AdminRoleID == "" {
		logger.Warn("admin role is not configured, admin commands and escalation mentions are disabled", "settings_path", cfg.SettingsPath)
	}

	backend, err := openCatalogBackend(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}
	issueCatalog := catalog.New(backend.store, logger.With("component", "catalog"))
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 10*time.Second)
	if err := issueCatalog.Refresh(loadCtx); err != nil {
		logger.Error("initial catalog load failed", "backend", backend.name, "error", err)
	} else {
		logger.Info("catalog loaded", "backend", backend.name, "records", issueCatalog.Len())
	}
	cancelLoad()

	engine := dispatch.New(cfg.DispatchConcurrency, time.Duration(cfg.DispatchJobTimeoutSec)*time.Second, logger)

	normalizer := normalize.New(
		newTranslator(cfg, logger),
		normalize.ParsePolicy(cfg.DetectFailurePolicy),
		logger,
	)
	var extractor triage.Extractor
	ocrClient := ocr.New(ocr.Config{
		BaseURL: cfg.OCRURL,
		Timeout: time.Duration(cfg.OCRTimeoutSec) * time.Second,
	})
	if ocrClient.Enabled() {
		extractor = ocrClient
	} else {
		logger.Info("text extraction disabled, image attachments will be ignored")
	}

	connector := discord.New(
		cfg.DiscordToken,
		cfg.DiscordAPI,
		cfg.DiscordWSURL,
		logger,
		discord.WithCommandSync(cfg.CommandSyncEnabled),
		discord.WithCommandGuildIDs(cfg.CommandGuildIDs()),
		discord.WithApplicationID(cfg.DiscordApplicationID),
		discord.WithDispatcher(engine),
	)

	// The outcome hook needs the triage service, which needs the manager.
	var triageService *triage.Service
	sessions := session.NewManager(connector, session.Options{
		Window:        time.Duration(cfg.SessionWindowSec) * time.Second,
		RequesterOnly: cfg.SessionRequesterOnly,
		AdminRole: func() string {
			return settingsRuntime.Snapshot().AdminRoleID
		},
		OnOutcome: func(outcome session.Outcome) {
			triageService.RecordOutcome(outcome)
		},
	}, logger)
	triageService = triage.New(triage.Dependencies{
		Catalog:    issueCatalog,
		Settings:   settingsRuntime,
		Normalizer: normalizer,
		Extractor:  extractor,
		Sessions:   sessions,
		Messenger:  connector,
		Transcript: memorylog.New(cfg.TranscriptRoot),
	}, triage.Config{
		Connector:              connector.Name(),
		MaxParallelExtractions: cfg.MaxParallelOCR,
	}, logger)
	connector.SetHandler(triageService)

	connectorList := []connectors.Connector{}
	if strings.TrimSpace(cfg.DiscordToken) != "" {
		connectorList = append(connectorList, connector)
	} else {
		logger.Warn("discord token missing, gateway connector disabled")
		if heartbeatRegistry != nil {
			heartbeatRegistry.Disabled("connector:discord", "token missing")
		}
	}

	schedulerService := scheduler.New(issueCatalog, cfg.CatalogRefresh, logger)
	schedulerService.SetDispatcher(engine)

	var watchService *watcher.Service
	if cfg.WatchSettings {
		watchService, err = watcher.New(cfg.SettingsPath, logger, func(ctx context.Context, path string) {
			if reloadErr := settingsRuntime.Reload(); reloadErr != nil {
				logger.Error("settings reload failed", "path", path, "error", reloadErr)
				if heartbeatRegistry != nil {
					heartbeatRegistry.Degrade("watcher", "settings reload failed", reloadErr)
				}
				return
			}
			logger.Info("settings reloaded", "path", path, "main_language", settingsRuntime.MainLanguage())
			if heartbeatRegistry != nil {
				heartbeatRegistry.Beat("watcher", "settings reloaded")
			}
		})
		if err != nil {
			backend.Close()
			return nil, err
		}
	} else if heartbeatRegistry != nil {
		heartbeatRegistry.Disabled("watcher", "settings watch disabled")
	}

	staleAfter := time.Duration(cfg.HeartbeatStaleSec) * time.Second
	handler := httpapi.NewRouter(httpapi.Dependencies{
		Config:              cfg,
		Catalog:             issueCatalog,
		Settings:            settingsRuntime,
		Sessions:            sessions,
		Dispatch:            engine,
		Ready:               backend.Ping,
		Logger:              logger.With("component", "api"),
		Heartbeat:           heartbeatRegistry,
		HeartbeatStaleAfter: staleAfter,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	runtime := &Runtime{
		cfg:        cfg,
		logger:     logger,
		backend:    backend,
		catalog:    issueCatalog,
		settings:   settingsRuntime,
		sessions:   sessions,
		triage:     triageService,
		engine:     engine,
		httpServer: httpServer,
		watcher:    watchService,
		scheduler:  schedulerService,
		connectors: connectorList,
	}
	if heartbeatRegistry == nil {
		return runtime, nil
	}

	schedulerService.SetHeartbeatReporter(heartbeatRegistry)
	for _, conn := range connectorList {
		if reporting, ok := conn.(heartbeatAware); ok {
			reporting.SetHeartbeatReporter(heartbeatRegistry)
		}
	}
	heartbeatRegistry.Gauge("catalog_records", func() int64 { return int64(issueCatalog.Len()) })
	heartbeatRegistry.Gauge("open_sessions", func() int64 { return int64(sessions.Len()) })
	heartbeatRegistry.Gauge("dispatch_queued", func() int64 { return int64(engine.Stats().Queued) })
	heartbeatRegistry.Gauge("dispatch_failed", func() int64 { return engine.Stats().Failed })

	notifier := newOpsNotifier(connector, cfg.OpsChannelID, logger.With("component", "ops-notifier"))
	runtime.heartbeat = heartbeatRegistry
	runtime.heartbeatMonitor = heartbeat.NewMonitor(heartbeatRegistry, heartbeat.MonitorConfig{
		Interval:     time.Duration(cfg.HeartbeatIntervalSec) * time.Second,
		StaleAfter:   staleAfter,
		Logger:       logger,
		OnTransition: notifier.HandleTransition,
	})
	return runtime, nil
}

func newTranslator(cfg config.Config, logger *slog.Logger) translate.Translator {
	timeout := time.Duration(cfg.TranslateTimeoutSec) * time.Second
	switch cfg.TranslateProvider {
	case "none":
		logger.Info("translation disabled, messages are matched as written")
		return nil
	case "openai":
		return translate.NewOpenAI(translate.OpenAIConfig{
			APIKey:  cfg.TranslateAPIKey,
			BaseURL: cfg.TranslateBaseURL,
			Model:   cfg.TranslateModel,
			Timeout: timeout,
		})
	default:
		return translate.NewLibre(translate.LibreConfig{
			BaseURL: cfg.TranslateBaseURL,
			APIKey:  cfg.TranslateAPIKey,
			Timeout: timeout,
		})
	}
}
