package domain

// Identity Model is the identity provider's credential record and custom claims
type Identity struct {
	AccountID    string `gorm:"primaryKey;size:64"`            // Same id as the account row
	Email        string `gorm:"size:255;uniqueIndex;not null"` // Login email
	PasswordHash string `gorm:"not null"`                      // bcrypt hash
	Role         Role   `gorm:"size:32;not null"`              // role claim
	Admin        bool   `gorm:"not null;default:false"`        // admin claim
}

// Claims are the custom attributes embedded into issued tokens
type Claims struct {
	Role  Role `json:"role"`
	Admin bool `json:"admin"`
}

// Caller is the authenticated principal behind a request
type Caller struct {
	AccountID string
	Role      Role
	Admin     bool
}
