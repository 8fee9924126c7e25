package devauthority

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/matchsync/internal/protocol"
)

func SetupRoutes(h *Hub, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/ws", Handler(h, log))
	r.Post("/matches", CreateMatchHandler(h))
	r.Get("/matches", ListMatchesHandler(h))
	return r
}

// CreateMatchHandler opens an empty match; players still join over /ws.
func CreateMatchHandler(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mt, err := h.Create(r.Context())
		if err != nil {
			http.Error(w, "failed to create match", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, struct {
			ID string `json:"id"`
		}{ID: mt.ID()})
	}
}

func ListMatchesHandler(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ms, err := h.List(r.Context())
		if err != nil {
			http.Error(w, "hub unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, protocol.WaitingMatches{Matches: ms})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
