package domain

import "time"

// Variant distinguishes the two account classes
type Variant string

const (
	VariantTraveler Variant = "traveler"
	VariantPartner  Variant = "partner"
)

// Valid reports whether v is a known account variant
func (v Variant) Valid() bool {
	return v == VariantTraveler || v == VariantPartner
}

// ControlCodePrefix returns the two-letter tag that partitions the shared control-code namespace
func (v Variant) ControlCodePrefix() string {
	switch v {
	case VariantTraveler:
		return "TR"
	case VariantPartner:
		return "PT"
	}
	return ""
}

// Role is the privilege level carried by an account and mirrored in its claims
type Role string

const (
	RoleTraveler         Role = "traveler"
	RoleTravelerElevated Role = "traveler_elevated"
	RolePartner          Role = "partner"
	RoleAdmin            Role = "admin"
)

// PaymentStatus tracks the subscription payment of an account
type PaymentStatus string

const (
	PaymentNone     PaymentStatus = "none"
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRejected PaymentStatus = "rejected"
)

// AccountStatus is the partner lifecycle state; travelers leave it empty
type AccountStatus string

const (
	AccountPendingApproval AccountStatus = "pending_approval"
	AccountPendingPayment  AccountStatus = "pending_payment"
	AccountApproved        AccountStatus = "approved"
	AccountSuspended       AccountStatus = "suspended"
	AccountRejected        AccountStatus = "rejected"
)

// Valid reports whether s is a known partner status
func (s AccountStatus) Valid() bool {
	switch s {
	case AccountPendingApproval, AccountPendingPayment, AccountApproved, AccountSuspended, AccountRejected:
		return true
	}
	return false
}

// Account Model
type Account struct {
	ID                  string        `gorm:"primaryKey;size:64" json:"id"`                       // Account id, shared with the identity record
	Variant             Variant       `gorm:"size:16;not null;index" json:"variant"`              // traveler or partner
	Email               string        `gorm:"size:255;uniqueIndex;not null" json:"email"`         // Login email
	DisplayName         string        `gorm:"size:255" json:"displayName"`                        // Display name
	Role                Role          `gorm:"size:32;not null;index" json:"role"`                 // Privilege level
	PaymentStatus       PaymentStatus `gorm:"size:16;not null;default:none" json:"paymentStatus"` // Subscription payment state
	ControlCode         *string       `gorm:"size:16;uniqueIndex" json:"controlCode"`             // Assigned once, unique across variants
	AccountStatus       AccountStatus `gorm:"size:32" json:"accountStatus,omitempty"`             // Partner lifecycle state
	NeedsReconciliation bool          `gorm:"not null;default:false" json:"-"`                    // Claims and record may have drifted
	CreatedAt           time.Time     `json:"createdAt"`
	UpdatedAt           time.Time     `json:"updatedAt"`
}

// BaseRole is the role an account falls back to when it holds no admin privilege
func (a *Account) BaseRole() Role {
	if a.Variant == VariantPartner {
		return RolePartner
	}
	if a.PaymentStatus == PaymentPaid {
		return RoleTravelerElevated
	}
	return RoleTraveler
}
