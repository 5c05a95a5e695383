package httpapi

import "net/http"

func (r *router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *router) handleReady(w http.ResponseWriter, req *http.Request) {
	if r.deps.Ready != nil {
		if err := r.deps.Ready(req.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (r *router) handleHeartbeat(w http.ResponseWriter, req *http.Request) {
	if r.deps.Heartbeat == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  "heartbeat is disabled",
		})
		return
	}
	writeJSON(w, http.StatusOK, r.deps.Heartbeat.Snapshot(r.deps.HeartbeatStaleAfter))
}

func (r *router) handleInfo(w http.ResponseWriter, req *http.Request) {
	payload := map[string]any{
		"name":            "fixdesk",
		"environment":     r.deps.Config.Environment,
		"catalog_backend": r.deps.Config.CatalogBackend,
	}
	if r.deps.Settings != nil {
		current := r.deps.Settings.Snapshot()
		payload["main_language"] = current.MainLanguage
		payload["monitored_category"] = current.MonitoredCategory
		payload["admin_role_configured"] = current.AdminRoleID != ""
	}
	if r.deps.Sessions != nil {
		payload["open_sessions"] = r.deps.Sessions.Len()
	}
	if r.deps.Dispatch != nil {
		stats := r.deps.Dispatch.Stats()
		payload["dispatch"] = map[string]any{
			"queued":    stats.Queued,
			"completed": stats.Completed,
			"failed":    stats.Failed,
		}
	}
	writeJSON(w, http.StatusOK, payload)
}
