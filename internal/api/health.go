package api

import (
	"context"
	"net/http"
	"time"
)

const pingTimeout = 3 * time.Second

type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Services  healthServices `json:"services"`
}

type healthServices struct {
	Store string `json:"store"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	storeStatus := "unknown"
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()
		storeStatus = "connected"
		if err := s.store.Ping(ctx); err != nil {
			s.log.Warn().Err(err).Msg("health ping failed")
			storeStatus = "disconnected"
		}
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  healthServices{Store: storeStatus},
	})
}
