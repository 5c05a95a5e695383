package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dwizi/fixdesk/internal/catalog"
	"github.com/dwizi/fixdesk/internal/config"
	"github.com/dwizi/fixdesk/internal/connectors"
	"github.com/dwizi/fixdesk/internal/dispatch"
	"github.com/dwizi/fixdesk/internal/heartbeat"
	"github.com/dwizi/fixdesk/internal/scheduler"
	"github.com/dwizi/fixdesk/internal/session"
	"github.com/dwizi/fixdesk/internal/settings"
	"github.com/dwizi/fixdesk/internal/triage"
	"github.com/dwizi/fixdesk/internal/watcher"
)

type Runtime struct {
	cfg              config.Config
	logger           *slog.Logger
	backend          *catalogBackend
	catalog          *catalog.Catalog
	settings         *settings.Runtime
	sessions         *session.Manager
	triage           *triage.Service
	engine           *dispatch.Engine
	httpServer       *http.Server
	watcher          *watcher.Service
	scheduler        *scheduler.Service
	connectors       []connectors.Connector
	heartbeat        *heartbeat.Registry
	heartbeatMonitor *heartbeat.Monitor
}

type heartbeatAware interface {
	SetHeartbeatReporter(reporter heartbeat.Reporter)
}

// publisher posts a plain message to a channel; the Discord connector is one.
type publisher interface {
	Publish(ctx context.Context, channelID, text string) error
}
