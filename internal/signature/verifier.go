// Package signature authenticates payment gateway notifications.
//
// The gateway signs "id:<transactionId>;request-id:<requestId>;ts:<ts>;" with
// HMAC-SHA256 and sends "ts=<unix>,v1=<hex digest>" in the signature header.
package signature

import (
	"crypto/hmac"   // HMAC and constant-time compare
	"crypto/sha256" // SHA-256 digest
	"encoding/hex"  // Hex digest encoding
	"errors"        // Error values
	"fmt"           // Rejection details
	"strconv"       // Timestamp parsing
	"strings"       // Header parsing
	"time"          // Freshness window

	"github.com/sirupsen/logrus" // Logging library
)

// DefaultTolerance is the largest accepted distance between ts and now
const DefaultTolerance = 300 * time.Second

// Reason names the check that rejected a notification. It is for the audit
// log only and must never reach the gateway.
type Reason string

const (
	ReasonMissingSecret     Reason = "missing_secret"
	ReasonMissingHeader     Reason = "missing_header"
	ReasonMalformedHeader   Reason = "malformed_header"
	ReasonExpiredTimestamp  Reason = "expired_timestamp"
	ReasonSignatureMismatch Reason = "signature_mismatch"
)

// ErrInvalidSignature is the only error callers outside the audit log see
var ErrInvalidSignature = errors.New("invalid signature")

// RejectError carries the audit reason for a rejection
type RejectError struct {
	Reason Reason
	Detail string
}

func (e *RejectError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return string(e.Reason) + ": " + e.Detail
}

// Is makes every rejection match ErrInvalidSignature
func (e *RejectError) Is(target error) bool {
	return target == ErrInvalidSignature
}

// Verifier checks signature envelopes against a shared secret
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
	log       logrus.FieldLogger
}

// NewVerifier creates a verifier. A zero tolerance means DefaultTolerance.
func NewVerifier(secret string, tolerance time.Duration, log logrus.FieldLogger) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Verifier{secret: []byte(secret), tolerance: tolerance, now: time.Now, log: log}
}

// Verify reports whether the notification is authentic and fresh. Every
// rejection is logged with its reason.
func (v *Verifier) Verify(signatureHeader, requestID, transactionID string) bool {
	err := v.Check(signatureHeader, requestID, transactionID)
	if err == nil {
		return true
	}
	fields := logrus.Fields{
		"request_id":     requestID,
		"transaction_id": transactionID,
	}
	var rej *RejectError
	if errors.As(err, &rej) {
		fields["reason"] = rej.Reason
		fields["detail"] = rej.Detail
	}
	v.log.WithFields(fields).Warn("payment notification rejected")
	return false
}

// Check is Verify without logging; the error is a *RejectError
func (v *Verifier) Check(signatureHeader, requestID, transactionID string) error {
	if len(v.secret) == 0 {
		return &RejectError{Reason: ReasonMissingSecret}
	}
	if strings.TrimSpace(signatureHeader) == "" {
		return &RejectError{Reason: ReasonMissingHeader, Detail: "signature"}
	}
	if strings.TrimSpace(requestID) == "" {
		return &RejectError{Reason: ReasonMissingHeader, Detail: "request id"}
	}
	if transactionID == "" {
		return &RejectError{Reason: ReasonMalformedHeader, Detail: "empty transaction id"}
	}

	ts, digest, err := parseEnvelope(signatureHeader)
	if err != nil {
		return &RejectError{Reason: ReasonMalformedHeader, Detail: err.Error()}
	}

	// Compared in whole seconds so any int64 ts stays in range
	skew := v.now().Unix() - ts
	tol := int64(v.tolerance / time.Second)
	if skew > tol || skew < -tol {
		return &RejectError{Reason: ReasonExpiredTimestamp, Detail: fmt.Sprintf("skew %ds", skew)}
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(CanonicalMessage(transactionID, requestID, ts))) // Same manifest the gateway signed
	if !hmac.Equal(mac.Sum(nil), digest) {
		return &RejectError{Reason: ReasonSignatureMismatch}
	}
	return nil
}

// CanonicalMessage is the exact string the gateway signs
func CanonicalMessage(transactionID, requestID string, ts int64) string {
	return "id:" + transactionID + ";request-id:" + requestID + ";ts:" + strconv.FormatInt(ts, 10) + ";"
}

// Sign builds a signature header value; the gateway side of Verify
func Sign(secret, transactionID, requestID string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(CanonicalMessage(transactionID, requestID, ts)))
	return "ts=" + strconv.FormatInt(ts, 10) + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

// parseEnvelope returns ts and the decoded digest; hex of either case is accepted
func parseEnvelope(header string) (int64, []byte, error) {
	var tsRaw, v1Raw string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue // Not a key=value pair
		}
		switch strings.TrimSpace(key) {
		case "ts":
			tsRaw = strings.TrimSpace(value)
		case "v1":
			v1Raw = strings.TrimSpace(value)
		}
	}
	if tsRaw == "" || v1Raw == "" {
		return 0, nil, errors.New("ts and v1 are required")
	}
	ts, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("bad ts: %w", err)
	}
	if len(v1Raw) != hex.EncodedLen(sha256.Size) {
		return 0, nil, fmt.Errorf("bad v1 length %d", len(v1Raw))
	}
	digest, err := hex.DecodeString(v1Raw)
	if err != nil {
		return 0, nil, fmt.Errorf("bad v1: %w", err)
	}
	return ts, digest, nil
}
