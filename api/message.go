package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/askdeck/faqbot/internal/log"
)

// Conversation is the pipeline surface the transport depends on.
type Conversation interface {
	HandleIncoming(ctx context.Context, channel, text string) string
	HandleCorrection(ctx context.Context, original, correction string) string
}

// MessageHandler handles conversational endpoints.
//
// Endpoints:
//   - POST /v1/messages    - one inbound message, one reply
//   - POST /v1/corrections - record a correction with the original question
type MessageHandler struct {
	pipeline Conversation
	logger   log.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(pipeline Conversation, logger log.Logger) *MessageHandler {
	return &MessageHandler{pipeline: pipeline, logger: logger}
}

// RegisterRoutes registers message routes on the given mux.
func (h *MessageHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/messages", h.handleMessage)
	mux.HandleFunc("POST /v1/corrections", h.handleCorrection)
}

// MessageRequest is the request body for POST /v1/messages.
type MessageRequest struct {
	// Channel identifies the conversation for follow-up handling.
	// Defaults to "default" when omitted.
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

// MessageResponse is the response body for POST /v1/messages.
type MessageResponse struct {
	Reply string `json:"reply"`
}

func (h *MessageHandler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "missing_text", "text is required")
		return
	}
	if req.Channel == "" {
		req.Channel = "default"
	}

	reply := h.pipeline.HandleIncoming(r.Context(), req.Channel, req.Text)
	writeJSON(w, http.StatusOK, MessageResponse{Reply: reply})
}

// CorrectionRequest is the request body for POST /v1/corrections.
type CorrectionRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func (h *MessageHandler) handleCorrection(w http.ResponseWriter, r *http.Request) {
	var req CorrectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.Answer) == "" {
		writeError(w, http.StatusBadRequest, "missing_fields", "question and answer are required")
		return
	}

	reply := h.pipeline.HandleCorrection(r.Context(), req.Question, req.Answer)
	writeJSON(w, http.StatusOK, MessageResponse{Reply: reply})
}
