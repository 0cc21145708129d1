package server

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/promptdock/internal/locale"
	"github.com/thebtf/promptdock/internal/stats"
)

// writeJSON writes a JSON response with proper error handling.
func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeJSONStatus writes a JSON response with an explicit status code.
func writeJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// decodeJSON decodes the request body into dst.
func decodeJSON(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// requestLocale resolves the display locale for a request: the "locale"
// query parameter wins, then the Accept-Language header, then English.
func requestLocale(r *http.Request) string {
	if q := r.URL.Query().Get("locale"); q != "" {
		return locale.Normalize(q)
	}
	if h := r.Header.Get("Accept-Language"); h != "" {
		return locale.Normalize(h)
	}
	return locale.Default
}

// handleHealth handles health check requests.
// Returns 200 OK immediately (even during init) so clients can connect.
// Use /api/ready for full readiness check.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "starting"
	if s.ready.Load() {
		status = "ready"
	} else if err := s.GetInitError(); err != nil {
		status = "error"
	}
	writeJSON(w, map[string]interface{}{
		"status":  status,
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
		"locales": locale.Supported(),
	})
}

// handleReady handles readiness check requests.
// Returns 200 only when fully initialized, 503 otherwise.
func (s *Service) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		if err := s.GetInitError(); err != nil {
			http.Error(w, "service initialization failed", http.StatusInternalServerError)
			return
		}
		http.Error(w, "service initializing", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]string{"status": "ready"})
}

// handleGetStats returns usage statistics for the calling user.
func (s *Service) handleGetStats(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)

	s.initMu.RLock()
	usage := s.usage
	s.initMu.RUnlock()

	data, err := usage.GetUsageData(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user", userID).Msg("Failed to load usage data")
		writeJSONStatus(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"message": "Failed to load usage statistics",
		})
		return
	}

	summary := stats.Aggregate(data.TotalChats, data.ChatCreatedAts, data.Messages, time.Now())
	writeJSON(w, map[string]interface{}{
		"success": true,
		"stats":   summary,
	})
}
