package domain

// TopicPayment is the only notification category that is reconciled
const TopicPayment = "payment"

// TransactionType selects which privilege transition an approved payment authorizes
type TransactionType string

const (
	TransactionUserSubscription    TransactionType = "user_subscription"
	TransactionPartnerSubscription TransactionType = "partner_subscription"
)

// GatewayStatusApproved is the confirmed status that authorizes a transition
const GatewayStatusApproved = "approved"

// PaymentNotification is the transient, unauthenticated input pushed by the gateway
type PaymentNotification struct {
	Topic         string // Notification category from the query string
	TransactionID string // Gateway transaction id from the body
	RequestID     string // x-request-id header
	Signature     string // x-signature header, "ts=<unix>,v1=<hex>"
}

// PaymentDetail is the authoritative transaction record fetched from the gateway
type PaymentDetail struct {
	ID                string          `json:"id"`
	Status            string          `json:"status"`
	ExternalReference string          `json:"external_reference"`
	Metadata          PaymentMetadata `json:"metadata"`
}

// PaymentMetadata carries the transition selector attached at checkout
type PaymentMetadata struct {
	TransactionType TransactionType `json:"transaction_type"`
}
