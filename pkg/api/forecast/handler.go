// Package forecast exposes the structured endpoints: resolution of an
// already-parsed request, bypassing the language layer entirely, plus a
// health probe over store and model state.
package forecast

import (
	"encoding/json"
	"errors"
	"net/http"

	"demand_forecasting/pkg/core/combination"
	"demand_forecasting/pkg/core/pipeline"
	"demand_forecasting/pkg/core/prediction"
)

// Handler serves the structured forecast API.
type Handler struct {
	orch  *pipeline.Orchestrator
	store prediction.Store
	model prediction.Forecaster
}

func NewHandler(orch *pipeline.Orchestrator, store prediction.Store, model prediction.Forecaster) *Handler {
	return &Handler{orch: orch, store: store, model: model}
}

// ForecastRequest is the already-structured input the core consumes.
type ForecastRequest struct {
	Products  []string           `json:"products"`
	Customers []string           `json:"customers"`
	Period    combination.Period `json:"period"`
}

// HandleForecast resolves every product x customer combination.
func (h *Handler) HandleForecast(w http.ResponseWriter, r *http.Request) {
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

	var req ForecastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	outcome, err := h.orch.RunForecast(r.Context(), req.Products, req.Customers, req.Period)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, combination.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	json.NewEncoder(w).Encode(outcome)
}

// HandleHealth reports store and model readiness for operators.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":       "ok",
		"store_loaded": h.store.IsLoaded(),
		"store_size":   h.store.Size(),
		"model_ready":  h.model != nil && h.model.IsReady(),
	})
}
