package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/config"
	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/pipeline"
)

type refreshRequest struct {
	AppID   string `json:"appId"`
	Country string `json:"country"`
	Lang    string `json:"lang"`
}

// handleHistory returns the saved history together with a recent lookup.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	appID, country, ok := s.pair(w, r.URL.Query().Get("appId"), r.URL.Query().Get("country"))
	if !ok {
		return
	}

	snap, err := s.tracker.Snapshot(r.Context(), appID, country)
	if err != nil {
		slog.Error("failed to load snapshot", "app_id", appID, "country", country, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":            true,
		"appId":         appID,
		"country":       country,
		"savedHistory":  snap.SavedHistory,
		"freshMetadata": snap.FreshMetadata,
	})
}

// handleChangelog returns the saved history, running one cycle first when the
// pair has never been saved.
func (s *Server) handleChangelog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	appID, country, ok := s.pair(w, r.URL.Query().Get("appId"), r.URL.Query().Get("country"))
	if !ok {
		return
	}

	saved, err := s.tracker.Saved(r.Context(), appID, country)
	if err != nil {
		slog.Error("failed to load history", "app_id", appID, "country", country, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if saved != nil {
		w.Header().Set("Cache-Control", "public, max-age=60")
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "from": "saved", "data": saved})
		return
	}

	slog.Info("no saved history, running live cycle", "app_id", appID, "country", country)
	verdict, err := s.tracker.RunCycle(r.Context(), appID, country, config.LangFor(country))
	if err != nil {
		s.cycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "from": "live", "data": verdict.Record})
}

// handleRefresh forces one cycle and returns its verdict.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req refreshRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	appID, country, ok := s.pair(w, req.AppID, req.Country)
	if !ok {
		return
	}
	lang := strings.TrimSpace(req.Lang)
	if lang == "" {
		lang = config.LangFor(country)
	}
	if !config.IsLang(lang) {
		writeError(w, http.StatusBadRequest, "lang must be a language tag")
		return
	}

	verdict, err := s.tracker.RunCycle(r.Context(), appID, country, lang)
	if err != nil {
		s.cycleError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": verdict})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	updatedAt := s.cache.UpdatedAt()

	resp := map[string]any{
		"status": "ok",
	}
	if !updatedAt.IsZero() {
		resp["last_update"] = updatedAt.Format("2006-01-02T15:04:05Z07:00")
	}

	writeJSON(w, http.StatusOK, resp)
}

// pair applies the configured defaults and validates the result. On failure
// it writes a 400 response.
func (s *Server) pair(w http.ResponseWriter, appID, country string) (string, string, bool) {
	appID = strings.TrimSpace(appID)
	if appID == "" {
		appID = s.cfg.AppID
	}
	if !config.IsAppID(appID) {
		writeError(w, http.StatusBadRequest, "appId must be a numeric App Store id")
		return "", "", false
	}
	country = strings.ToLower(strings.TrimSpace(country))
	if country == "" {
		country = s.cfg.DefaultCountry
	}
	if !config.IsCountryCode(country) {
		writeError(w, http.StatusBadRequest, "country must be a two-letter code")
		return "", "", false
	}
	return appID, country, true
}

func (s *Server) cycleError(w http.ResponseWriter, err error) {
	if errors.Is(err, pipeline.ErrBusy) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	slog.Error("cycle failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}
