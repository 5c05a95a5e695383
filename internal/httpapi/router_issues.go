package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dwizi/fixdesk/internal/catalog"
	"github.com/dwizi/fixdesk/internal/triageerr"
)

type issueRequest struct {
	Issue string `json:"issue"`
	Fix   string `json:"fix"`
	Image string `json:"img"`
}

func (r *router) handleIssues(w http.ResponseWriter, req *http.Request) {
	if r.deps.Catalog == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "catalog unavailable"})
		return
	}
	switch req.Method {
	case http.MethodGet:
		r.handleIssuesList(w, req)
	case http.MethodPost:
		if !r.authorized(w, req) {
			return
		}
		r.handleIssuesCreate(w, req)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (r *router) handleIssuesList(w http.ResponseWriter, req *http.Request) {
	records := r.deps.Catalog.Records(req.Context())
	query := strings.ToLower(strings.TrimSpace(req.URL.Query().Get("q")))
	items := make([]catalog.IssueRecord, 0, len(records))
	for _, record := range records {
		if query != "" && !strings.Contains(strings.ToLower(record.Issue), query) {
			continue
		}
		items = append(items, record)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func (r *router) handleIssuesCreate(w http.ResponseWriter, req *http.Request) {
	var payload issueRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	record, err := catalog.NewRecord(catalog.NewRecordInput{
		Issue:     payload.Issue,
		Fix:       payload.Fix,
		Image:     payload.Image,
		CreatedBy: "api",
	})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := r.deps.Catalog.Append(req.Context(), record); err != nil {
		r.deps.Logger.Error("failed to append issue", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not store issue"})
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

type languageRequest struct {
	Language string `json:"language"`
}

func (r *router) handleLanguage(w http.ResponseWriter, req *http.Request) {
	if r.deps.Settings == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "settings unavailable"})
		return
	}
	switch req.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{"language": r.deps.Settings.Snapshot().MainLanguage})
	case http.MethodPut, http.MethodPost:
		if !r.authorized(w, req) {
			return
		}
		var payload languageRequest
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		code, err := r.deps.Settings.SetMainLanguage(payload.Language)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, triageerr.ErrInvalidInput) {
				status = http.StatusBadRequest
			}
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"language": code})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}
