// Package assistant exposes the conversational endpoint: free-form message
// in, parsed-and-resolved forecast answer (or chat reply) out.
package assistant

import (
	"encoding/json"
	"net/http"

	"demand_forecasting/pkg/core/pipeline"
)

// Handler provides HTTP handlers for the assistant flow.
type Handler struct {
	orch *pipeline.Orchestrator
}

// NewHandler creates a new assistant handler.
func NewHandler(orch *pipeline.Orchestrator) *Handler {
	return &Handler{orch: orch}
}

// ChatRequest is the user's free-form message.
type ChatRequest struct {
	Message string `json:"message"`
}

// HandleChat runs the full flow: intent parsing, resolution, enrichment,
// composition.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "Field 'message' is required", http.StatusBadRequest)
		return
	}

	outcome := h.orch.HandleMessage(r.Context(), req.Message)
	json.NewEncoder(w).Encode(outcome)
}
