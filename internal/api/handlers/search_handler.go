package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/verdicta-io/verdicta/internal/core"
	"github.com/verdicta-io/verdicta/internal/core/search"
	"github.com/verdicta-io/verdicta/internal/models"
)

type SearchHandler struct {
	engine *search.Engine
}

func NewSearchHandler(engine *search.Engine) *SearchHandler {
	return &SearchHandler{engine: engine}
}

type searchRequest struct {
	Query          string   `json:"query"`
	Limit          int      `json:"limit"`
	Mode           string   `json:"mode"` // full-text | semantic | hybrid
	LexicalWeight  *float64 `json:"lexical_weight,omitempty"`
	SemanticWeight *float64 `json:"semantic_weight,omitempty"`
}

// Search executes one query in the requested mode.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}
	if req.Mode == "" {
		req.Mode = models.MatchHybrid
	}

	resp, err := h.engine.Search(r.Context(), req.Query, search.Options{
		Mode:           req.Mode,
		Limit:          req.Limit,
		LexicalWeight:  req.LexicalWeight,
		SemanticWeight: req.SemanticWeight,
	})
	if err != nil {
		if errors.Is(err, core.ErrQueryEmbedding) {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
