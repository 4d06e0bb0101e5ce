package handlers

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/repositories"
	"github.com/FoleyBridge-Solutions/tr-pay-sub002/internal/services"
)

type ReconciliationHandler struct {
	reconciliationService *services.ReconciliationService
	processingMutex       sync.Mutex
	runInProgress         bool
}

func NewReconciliationHandler(reconciliationService *services.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{
		reconciliationService: reconciliationService,
	}
}

// StartRun triggers a reconciliation pass. One pass at a time: a run reads
// whole vendor reports, so a concurrent second pass would only race the
// same payments for no benefit.
func (h *ReconciliationHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	var request struct {
		DryRun     bool  `json:"dry_run"`
		PaymentID  int64 `json:"payment_id"`
		WindowDays int   `json:"window_days"`
	}

	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request payload")
			return
		}
	}

	if request.PaymentID < 0 || request.WindowDays < 0 {
		respondWithError(w, http.StatusBadRequest, "payment_id and window_days must be non-negative")
		return
	}

	h.processingMutex.Lock()
	if h.runInProgress {
		h.processingMutex.Unlock()
		respondWithError(w, http.StatusConflict, "A reconciliation run is already in progress")
		return
	}
	h.runInProgress = true
	h.processingMutex.Unlock()

	defer func() {
		h.processingMutex.Lock()
		h.runInProgress = false
		h.processingMutex.Unlock()
	}()

	report, err := h.reconciliationService.Run(services.RunOptions{
		DryRun:     request.DryRun,
		PaymentID:  request.PaymentID,
		WindowDays: request.WindowDays,
	})
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, report)
}

func (h *ReconciliationHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	runID := vars["run_id"]

	if runID == "" {
		respondWithError(w, http.StatusBadRequest, "Run ID is required")
		return
	}

	run, err := h.reconciliationService.GetRun(runID)
	if err == repositories.ErrRunNotFound {
		respondWithError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, run)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Error marshaling JSON response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
