// Package webhook decodes and verifies payment-provider events. Nothing
// touches state before the signature check passes.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"vds-shop-bot/internal/db"
	"vds-shop-bot/internal/metrics"
	"vds-shop-bot/internal/order"
	"vds-shop-bot/internal/recon"
)

const signatureHeader = "X-Signature"

// eventInvoicePaid is the only event type that triggers reconciliation.
const eventInvoicePaid = "invoice_paid"

// Reconciler resolves a paid invoice to its order.
type Reconciler interface {
	ConfirmPaymentByInvoice(ctx context.Context, invoiceID int64, origin recon.Origin) (*order.Summary, error)
}

// Handler verifies provider signatures and forwards invoice_paid events.
type Handler struct {
	logger     *slog.Logger
	metrics    *metrics.Metrics
	secret     string
	reconciler Reconciler
}

// NewHandler creates the webhook handler with the shared HMAC secret.
func NewHandler(logger *slog.Logger, m *metrics.Metrics, secret string, reconciler Reconciler) *Handler {
	return &Handler{
		logger:     logger.With("component", "webhook"),
		metrics:    m,
		secret:     secret,
		reconciler: reconciler,
	}
}

// VerifySignature checks the hex HMAC-SHA256 of body against the header
// value. An empty secret rejects everything.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}

// ServeHTTP satisfies http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if !VerifySignature(h.secret, body, r.Header.Get(signatureHeader)) {
		h.metrics.WebhookEvents.WithLabelValues("unknown", "unauthorized").Inc()
		writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false})
		return
	}

	var event struct {
		UpdateType string `json:"update_type"`
		Type       string `json:"type"`
		Event      string `json:"event"`
		InvoiceID  int64  `json:"invoice_id"`
		Payload    struct {
			InvoiceID int64 `json:"invoice_id"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		h.metrics.WebhookEvents.WithLabelValues("unknown", "malformed").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false})
		return
	}

	eventType := event.UpdateType
	if eventType == "" {
		eventType = event.Type
	}
	if eventType == "" {
		eventType = event.Event
	}

	if eventType != eventInvoicePaid {
		// Acknowledge everything else so the provider does not retry.
		h.metrics.WebhookEvents.WithLabelValues(eventType, "ignored").Inc()
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	invoiceID := event.InvoiceID
	if invoiceID == 0 {
		invoiceID = event.Payload.InvoiceID
	}
	if invoiceID == 0 {
		h.metrics.WebhookEvents.WithLabelValues(eventType, "no_invoice").Inc()
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if _, err := h.reconciler.ConfirmPaymentByInvoice(r.Context(), invoiceID, recon.OriginWebhook); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			// No order carries this invoice; ack so the provider stops.
			h.metrics.WebhookEvents.WithLabelValues(eventType, "unmatched").Inc()
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		h.logger.Error("failed processing webhook", "invoice_id", invoiceID, "error", err)
		h.metrics.WebhookEvents.WithLabelValues(eventType, "error").Inc()
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false})
		return
	}

	h.metrics.WebhookEvents.WithLabelValues(eventType, "confirmed").Inc()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
