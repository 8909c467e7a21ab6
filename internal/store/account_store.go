// Package store persists accounts through GORM. Every call is bounded by the
// store timeout and multi-field changes to one account are a single UPDATE.
package store

import (
	"context" // Context for timeouts and cancellation
	"errors"  // Error classification
	"fmt"     // Error wrapping
	"strings" // String manipulation
	"time"    // Operation timeouts

	"travel_marketplace/internal/db"     // Duplicate-key detection
	"travel_marketplace/internal/domain" // Domain models and errors

	"gorm.io/gorm"        // GORM ORM library
	"gorm.io/gorm/clause" // Row locking clauses
)

// PaymentTransition is the terminal state written by an approved payment.
// Empty fields are left untouched.
type PaymentTransition struct {
	Role          domain.Role
	PaymentStatus domain.PaymentStatus
	AccountStatus domain.AccountStatus
}

// AccountStore is the GORM-backed account store
type AccountStore struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewAccountStore creates an account store; timeout bounds each operation
func NewAccountStore(gdb *gorm.DB, timeout time.Duration) *AccountStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AccountStore{db: gdb, timeout: timeout}
}

func (s *AccountStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Create inserts a new account row
func (s *AccountStore) Create(ctx context.Context, acc *domain.Account) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	acc.Email = strings.ToLower(acc.Email) // Emails are unique case-insensitively
	if err := s.db.WithContext(ctx).Create(acc).Error; err != nil {
		if db.IsDuplicate(err) {
			return domain.ErrEmailTaken
		}
		return translate(err)
	}
	return nil
}

// Get loads an account by id
func (s *AccountStore) Get(ctx context.Context, id string) (*domain.Account, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var acc domain.Account
	if err := s.db.WithContext(ctx).First(&acc, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &acc, nil
}

// FindByEmail loads an account by its login email
func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var acc domain.Account
	if err := s.db.WithContext(ctx).First(&acc, "email = ?", strings.ToLower(email)).Error; err != nil {
		return nil, translate(err)
	}
	return &acc, nil
}

// ControlCodeExists reports whether any account, of either variant, holds code
func (s *AccountStore) ControlCodeExists(ctx context.Context, code string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var n int64
	if err := s.db.WithContext(ctx).Model(&domain.Account{}).Where("control_code = ?", code).Count(&n).Error; err != nil {
		return false, translate(err)
	}
	return n > 0, nil
}

// AssignControlCode writes code onto an account that has none yet. A unique
// index violation is reported as ErrControlCodeTaken and nothing is written.
func (s *AccountStore) AssignControlCode(ctx context.Context, id, code string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res := s.db.WithContext(ctx).Model(&domain.Account{}).
		Where("id = ? AND control_code IS NULL", id). // Never overwrite an issued code
		Update("control_code", code)
	if res.Error != nil {
		if db.IsDuplicate(res.Error) {
			return domain.ErrControlCodeTaken
		}
		return translate(res.Error)
	}
	if res.RowsAffected == 1 {
		return nil // Code written
	}

	var acc domain.Account
	if err := s.db.WithContext(ctx).Select("id", "control_code").First(&acc, "id = ?", id).Error; err != nil {
		return translate(err)
	}
	return domain.ErrControlCodeAssigned
}

// ApplyPayment overwrites the payment-driven fields of one account in a single
// UPDATE. An administrator keeps the admin role. Returns the resulting row.
func (s *AccountStore) ApplyPayment(ctx context.Context, id string, variant domain.Variant, t PaymentTransition) (*domain.Account, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var acc domain.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&acc, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		if acc.Variant != variant {
			return fmt.Errorf("%w: account %s is a %s, not a %s", domain.ErrInvalidArgument, id, acc.Variant, variant)
		}

		// A successful write clears any earlier drift marker; admins keep their role
		updates := map[string]any{"needs_reconciliation": false}
		if t.Role != "" && acc.Role != domain.RoleAdmin {
			updates["role"] = t.Role
		}
		if t.PaymentStatus != "" {
			updates["payment_status"] = t.PaymentStatus
		}
		if t.AccountStatus != "" {
			updates["account_status"] = t.AccountStatus
		}
		if err := tx.Model(&acc).Updates(updates).Error; err != nil {
			return translate(err)
		}
		return translate(tx.First(&acc, "id = ?", id).Error)
	})
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// SetPartnerStatus overwrites a partner's lifecycle state
func (s *AccountStore) SetPartnerStatus(ctx context.Context, id string, status domain.AccountStatus) (*domain.Account, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var acc domain.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&acc, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		if acc.Variant != domain.VariantPartner { // Travelers have no lifecycle state
			return fmt.Errorf("%w: account %s is not a partner", domain.ErrInvalidArgument, id)
		}
		if err := tx.Model(&acc).Update("account_status", status).Error; err != nil {
			return translate(err)
		}
		return translate(tx.First(&acc, "id = ?", id).Error)
	})
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// ListAdmins enumerates the Administrator Set with a fresh read
func (s *AccountStore) ListAdmins(ctx context.Context) ([]domain.Account, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var admins []domain.Account
	if err := s.db.WithContext(ctx).Where("role = ?", domain.RoleAdmin).Order("email").Find(&admins).Error; err != nil {
		return nil, translate(err)
	}
	return admins, nil
}

// MarkNeedsReconciliation flags an account whose claims may disagree with its row
func (s *AccountStore) MarkNeedsReconciliation(ctx context.Context, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return translate(s.db.WithContext(ctx).Model(&domain.Account{}).
		Where("id = ?", id).
		Update("needs_reconciliation", true).Error)
}

// translate maps gorm and context errors onto the domain taxonomy
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrNotFound // Missing row
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", domain.ErrTransient, err) // Timed out, safe to retry
	}
	return err
}
