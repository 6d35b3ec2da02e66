package handler

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/unravelhq/tripflow/internal/errors"
	"github.com/unravelhq/tripflow/internal/middleware"
	"github.com/unravelhq/tripflow/internal/reconcile"
)

// WebhookTokenHeader authenticates quote callbacks from the backend.
const WebhookTokenHeader = "X-Webhook-Token"

// HandleWebhook receives a quote callback from the booking backend and
// reconciles it against the traveler's request id ledger. Rejections
// that carry no retry value (unknown recipient, stale id, wrong stage)
// are acknowledged with 200 so the backend stops redelivering them.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerWithCorrelation(r.Context(), h.logger)

	token := r.Header.Get(WebhookTokenHeader)
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.webhookToken)) != 1 {
		logger.Warn("webhook with invalid token", zap.String("remote_addr", r.RemoteAddr))
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		return
	}

	var payload reconcile.RawQuotePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.Warn("malformed webhook payload", zap.Error(err))
		h.recordWebhook("unknown")
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	h.recordWebhook(webhookKind(&payload))

	delivery, err := payload.Normalize()
	if err != nil {
		logger.Warn("webhook payload failed validation", zap.Error(err))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	// Reconciliation runs under the traveler's lock so it cannot
	// interleave with an in-flight inbound message.
	var applyErr error
	h.dispatcher.Serialize(delivery.CustomerPhone, func() {
		applyErr = h.reconciler.Apply(r.Context(), delivery)
	})

	if applyErr != nil {
		if apperrors.IsDiscard(applyErr) {
			logger.Info("quote callback rejected",
				zap.String("request_id", delivery.RequestID),
				zap.String("code", string(apperrors.GetCode(applyErr))),
			)
			h.writeJSON(w, http.StatusOK, map[string]string{
				"status": "rejected",
				"reason": string(apperrors.GetCode(applyErr)),
			})
			return
		}

		logger.Error("quote reconciliation failed",
			zap.String("request_id", delivery.RequestID),
			zap.Error(applyErr),
		)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "reconciliation failed"})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "delivered"})
}

// webhookKind classifies a payload for metrics.
func webhookKind(p *reconcile.RawQuotePayload) string {
	if len(p.Quotes) > 0 {
		return "vendor_quotes"
	}
	return "booking_confirmation"
}

func (h *Handler) recordWebhook(kind string) {
	if h.metrics != nil {
		h.metrics.RecordWebhook(kind)
	}
}
