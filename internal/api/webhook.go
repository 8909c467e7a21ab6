package api

import (
	"bytes"         // Body buffering
	"context"       // Reconciler context
	"encoding/json" // Body decoding
	"errors"        // Error classification
	"io"            // Body reading
	"net/http"      // HTTP status codes

	"travel_marketplace/internal/domain"  // Notification types
	"travel_marketplace/internal/payment" // Reconciliation outcomes

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

const webhookBodyLimit = 1 << 20 // 1MiB

// SignatureVerifier authenticates gateway notifications
type SignatureVerifier interface {
	Verify(signatureHeader, requestID, transactionID string) bool
}

// PaymentReconciler applies verified notifications
type PaymentReconciler interface {
	Reconcile(ctx context.Context, n domain.PaymentNotification) (payment.Outcome, error)
}

// notificationBody is the part of the gateway payload we read; the id may
// arrive as data.id or id, as a number or a string
type notificationBody struct {
	ID   json.RawMessage `json:"id"`
	Type string          `json:"type"`
	Data struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

func (b notificationBody) transactionID() string {
	id := b.Data.ID
	if len(id) == 0 || string(id) == "null" {
		id = b.ID
	}
	if len(id) == 0 || string(id) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(id, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(id))
}

// PaymentWebhookHandler receives gateway notifications. Authentication
// failures all get the same answer so the response never says which check failed.
func PaymentWebhookHandler(verifier SignatureVerifier, reconciler PaymentReconciler, log logrus.FieldLogger) gin.HandlerFunc {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.JSON(http.StatusMethodNotAllowed, gin.H{"status": "ERROR", "message": "method not allowed"})
			return
		}
		// The gateway sends the category as ?topic= or ?type=
		topic := c.Query("topic")
		if topic == "" {
			topic = c.Query("type")
		}
		if topic != domain.TopicPayment {
			log.WithField("topic", topic).Info("webhook ignored")
			c.JSON(http.StatusOK, gin.H{"status": "Ignored"})
			return
		}

		raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, webhookBodyLimit))
		if err != nil {
			log.WithError(err).Warn("webhook body unreadable")
			c.JSON(http.StatusBadRequest, gin.H{"status": "ERROR", "message": "invalid signature"})
			return
		}
		var body notificationBody
		_ = json.Unmarshal(raw, &body) // An unparsable body leaves the id empty and fails verification

		n := domain.PaymentNotification{
			Topic:         topic,
			TransactionID: body.transactionID(),
			RequestID:     c.GetHeader("x-request-id"),
			Signature:     c.GetHeader("x-signature"),
		}
		if !verifier.Verify(n.Signature, n.RequestID, n.TransactionID) {
			c.JSON(http.StatusBadRequest, gin.H{"status": "ERROR", "message": "invalid signature"})
			return
		}

		outcome, err := reconciler.Reconcile(c.Request.Context(), n)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "ERROR", "message": webhookFailureMessage(err)})
			return
		}
		if outcome == payment.OutcomeIgnored {
			c.JSON(http.StatusOK, gin.H{"status": "Ignored"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	}
}

// webhookFailureMessage names the failure class without internal detail
func webhookFailureMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrTransient):
		return "temporary failure, retry later"
	case errors.Is(err, domain.ErrMissingReference):
		return domain.ErrMissingReference.Error()
	case errors.Is(err, domain.ErrUnknownTransition):
		return domain.ErrUnknownTransition.Error()
	case errors.Is(err, domain.ErrNotFound):
		return "referenced account not found"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "referenced account does not match transaction type"
	}
	return "temporary failure, retry later"
}
