package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/askdeck/faqbot/internal/log"
)

// Recorder adds a single question/answer record to the knowledge base.
type Recorder interface {
	Add(ctx context.Context, id, question, answer string) error
}

// RecordHandler handles knowledge base record endpoints.
type RecordHandler struct {
	recorder Recorder
	logger   log.Logger
}

// NewRecordHandler creates a new record handler.
// A nil recorder disables the endpoint.
func NewRecordHandler(recorder Recorder, logger log.Logger) *RecordHandler {
	return &RecordHandler{recorder: recorder, logger: logger}
}

// RegisterRoutes registers record routes on the given mux.
func (h *RecordHandler) RegisterRoutes(mux *http.ServeMux) {
	if h.recorder == nil {
		return
	}
	mux.HandleFunc("POST /v1/records", h.addRecord)
}

// RecordRequest is the request body for POST /v1/records.
type RecordRequest struct {
	// ID is optional; a random one is assigned when omitted. Reusing an
	// id replaces the record.
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// RecordResponse is the response body for POST /v1/records.
type RecordResponse struct {
	ID string `json:"id"`
}

func (h *RecordHandler) addRecord(w http.ResponseWriter, r *http.Request) {
	var req RecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.Answer) == "" {
		writeError(w, http.StatusBadRequest, "missing_fields", "question and answer are required")
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	if err := h.recorder.Add(r.Context(), req.ID, req.Question, req.Answer); err != nil {
		h.logger.Error("adding record", "error", err, "id", req.ID)
		writeError(w, http.StatusInternalServerError, "store_failed", "could not store the record")
		return
	}

	writeJSON(w, http.StatusCreated, RecordResponse{ID: req.ID})
}
