package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/unravelhq/tripflow/internal/middleware"
	"github.com/unravelhq/tripflow/internal/transport"
)

// HandleInbound receives a message from the WhatsApp bridge and runs it
// through the conversation flow. The bridge only needs to know the
// message was taken; replies go back over the transport, not this
// response.
func (h *Handler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerWithCorrelation(r.Context(), h.logger)

	var msg transport.InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		logger.Warn("malformed inbound payload", zap.Error(err))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	if strings.TrimSpace(msg.UserID) == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	if err := h.dispatcher.HandleInbound(r.Context(), msg); err != nil {
		logger.Error("inbound processing failed", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "processing failed"})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
