package api

import (
	"net/http"

	"github.com/kjannette/quotesync/internal/models"
	"github.com/kjannette/quotesync/internal/scheduler"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeJSON(w, http.StatusOK, scheduler.Status{})
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

type symbolsResponse struct {
	Count   int                 `json:"count"`
	Indices []models.SymbolPair `json:"indices"`
	Stocks  []models.SymbolPair `json:"stocks"`
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, symbolsResponse{
		Count:   s.universe.Len(),
		Indices: s.universe.Indices,
		Stocks:  s.universe.Stocks,
	})
}
