package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dwizi/fixdesk/internal/catalog"
	"github.com/dwizi/fixdesk/internal/config"
	"github.com/dwizi/fixdesk/internal/dispatch"
	"github.com/dwizi/fixdesk/internal/heartbeat"
	"github.com/dwizi/fixdesk/internal/settings"
)

type IssueCatalog interface {
	Records(ctx context.Context) []catalog.IssueRecord
	Append(ctx context.Context, record catalog.IssueRecord) error
}

type SettingsStore interface {
	Snapshot() settings.Settings
	SetMainLanguage(code string) (string, error)
}

type SessionCounter interface {
	Len() int
}

type DispatchStats interface {
	Stats() dispatch.Stats
}

type Dependencies struct {
	Config              config.Config
	Catalog             IssueCatalog
	Settings            SettingsStore
	Sessions            SessionCounter
	Dispatch            DispatchStats
	Ready               func(ctx context.Context) error
	Logger              *slog.Logger
	Heartbeat           *heartbeat.Registry
	HeartbeatStaleAfter time.Duration
}

type router struct {
	deps Dependencies
}

func NewRouter(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	rt := &router{deps: deps}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.handleHealth)
	mux.HandleFunc("/readyz", rt.handleReady)
	mux.HandleFunc("/api/v1/heartbeat", rt.handleHeartbeat)
	mux.HandleFunc("/api/v1/info", rt.handleInfo)
	mux.HandleFunc("/api/v1/issues", rt.handleIssues)
	mux.HandleFunc("/api/v1/settings/language", rt.handleLanguage)
	return mux
}

// authorized guards mutating endpoints. Without a configured admin token they
// are closed.
func (r *router) authorized(w http.ResponseWriter, req *http.Request) bool {
	want := strings.TrimSpace(r.deps.Config.AdminToken)
	if want == "" {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin api is disabled"})
		return false
	}
	got := strings.TrimSpace(strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer "))
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
