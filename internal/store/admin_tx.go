package store

import (
	"context" // Context for timeouts and cancellation
	"strings" // String manipulation

	"travel_marketplace/internal/domain" // Domain models and errors

	"gorm.io/gorm"        // GORM ORM library
	"gorm.io/gorm/clause" // Row locking clauses
)

// AdminTx is the view of the store while the Administrator Set is locked.
// Everything done through it commits or rolls back together.
type AdminTx interface {
	Admins() ([]domain.Account, error)
	Account(id string) (*domain.Account, error)
	AccountByEmail(email string) (*domain.Account, error)
	SetRole(id string, role domain.Role) error
}

type gormAdminTx struct {
	tx *gorm.DB
}

// InAdminTx runs fn in one transaction. Admin rows and the accounts fn reads
// are locked FOR UPDATE, so enumerate-then-revoke cannot interleave with
// another admin mutation. fn's error rolls the transaction back.
func (s *AccountStore) InAdminTx(ctx context.Context, fn func(AdminTx) error) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormAdminTx{tx: tx})
	})
	return translate(err)
}

func (t *gormAdminTx) locked() *gorm.DB {
	return t.tx.Clauses(clause.Locking{Strength: "UPDATE"}) // SELECT ... FOR UPDATE
}

func (t *gormAdminTx) Admins() ([]domain.Account, error) {
	var admins []domain.Account
	if err := t.locked().Where("role = ?", domain.RoleAdmin).Order("id").Find(&admins).Error; err != nil { // Lock order by id
		return nil, translate(err)
	}
	return admins, nil
}

func (t *gormAdminTx) Account(id string) (*domain.Account, error) {
	var acc domain.Account
	if err := t.locked().First(&acc, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &acc, nil
}

func (t *gormAdminTx) AccountByEmail(email string) (*domain.Account, error) {
	var acc domain.Account
	if err := t.locked().First(&acc, "email = ?", strings.ToLower(email)).Error; err != nil {
		return nil, translate(err)
	}
	return &acc, nil
}

func (t *gormAdminTx) SetRole(id string, role domain.Role) error {
	res := t.tx.Model(&domain.Account{}).Where("id = ?", id).Update("role", role)
	if res.Error != nil {
		return translate(res.Error)
	}
	return nil
}
