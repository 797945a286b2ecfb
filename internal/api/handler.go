// internal/api/handler.go
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github-trend-analytics/internal/database"
)

// Handler is the container for API dependencies. It reads exclusively from
// the analytics views; raw and staging tables are internal to the pipeline.
type Handler struct {
	db               database.Querier
	logger           *slog.Logger
	overallLimit     int
	perLanguageLimit int
}

// NewRouter creates and configures a new chi router with all API routes.
// overallLimit and perLanguageLimit are the default leaderboard sizes when
// the caller sends no limit parameter.
func NewRouter(db database.Querier, logger *slog.Logger, overallLimit, perLanguageLimit int) http.Handler {
	h := &Handler{
		db:               db,
		logger:           logger,
		overallLimit:     overallLimit,
		perLanguageLimit: perLanguageLimit,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger) // Chi's default logger
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// API Routes
	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/leaderboard", h.getLeaderboard)
		r.Get("/leaderboard/language/{language}", h.getLanguageLeaderboard)
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getLeaderboard returns the overall momentum leaderboard.
// GET /v1/leaderboard?limit=N
func (h *Handler) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, h.overallLimit)
	if !ok {
		return
	}

	rows, err := h.db.ListLeaderboard(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to query leaderboard", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if rows == nil {
		rows = []database.LeaderboardRow{} // empty pipeline state is not an error
	}

	respondWithJSON(w, http.StatusOK, rows)
}

// getLanguageLeaderboard returns the per-language top-N.
// GET /v1/leaderboard/language/{language}?limit=N
func (h *Handler) getLanguageLeaderboard(w http.ResponseWriter, r *http.Request) {
	language := chi.URLParam(r, "language")

	limit, ok := parseLimit(w, r, h.perLanguageLimit)
	if !ok {
		return
	}

	rows, err := h.db.ListLanguageLeaderboard(r.Context(), database.ListLanguageLeaderboardParams{
		Language: language,
		Limit:    limit,
	})
	if err != nil {
		h.logger.Error("Failed to query language leaderboard", "language", language, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if rows == nil {
		rows = []database.LeaderboardRow{}
	}

	respondWithJSON(w, http.StatusOK, rows)
}

func parseLimit(w http.ResponseWriter, r *http.Request, def int) (int32, bool) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return int32(def), true
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > 1000 {
		respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter. Must be an integer between 1 and 1000.")
		return 0, false
	}
	return int32(limit), true
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
