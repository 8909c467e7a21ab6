// Package identity is the identity provider: credential records plus the
// custom claims (role, admin) embedded into issued tokens.
package identity

import (
	"context" // Context for timeouts and cancellation
	"errors"  // Error classification
	"strings" // String manipulation
	"time"    // Operation timeouts

	"travel_marketplace/internal/db"     // Duplicate-key detection
	"travel_marketplace/internal/domain" // Domain models and errors
	"travel_marketplace/internal/utils"  // JWT utility functions

	"golang.org/x/crypto/bcrypt" // Password hashing
	"gorm.io/gorm"               // GORM ORM library
)

// Provider manages identities and their claims
type Provider struct {
	db      *gorm.DB
	secret  string
	timeout time.Duration
}

// NewProvider creates an identity provider that signs tokens with secret
func NewProvider(gdb *gorm.DB, secret string, timeout time.Duration) *Provider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Provider{db: gdb, secret: secret, timeout: timeout}
}

// Provision creates the credential record with its initial claims
func (p *Provider) Provision(ctx context.Context, accountID, email, password string, role domain.Role) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost) // Hash the password
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.db.WithContext(ctx).Create(&domain.Identity{
		AccountID:    accountID,
		Email:        strings.ToLower(email),
		PasswordHash: string(hash),
		Role:         role,
	}).Error
	if db.IsDuplicate(err) {
		return domain.ErrEmailTaken
	}
	return err
}

// Delete removes an identity; used to undo a provisioning whose account row failed
func (p *Provider) Delete(ctx context.Context, accountID string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.db.WithContext(ctx).Delete(&domain.Identity{}, "account_id = ?", accountID).Error
}

// Authenticate checks credentials and issues a token carrying the current claims
func (p *Provider) Authenticate(ctx context.Context, email, password string) (string, *domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var ident domain.Identity
	if err := p.db.WithContext(ctx).First(&ident, "email = ?", strings.ToLower(email)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, domain.ErrUnauthenticated // Unknown email looks like a wrong password
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(ident.PasswordHash), []byte(password)); err != nil {
		return "", nil, domain.ErrUnauthenticated
	}
	token, err := utils.GenerateJWT(ident.AccountID, domain.Claims{Role: ident.Role, Admin: ident.Admin}, p.secret)
	if err != nil {
		return "", nil, err
	}
	return token, &ident, nil
}

// GetClaims returns the custom claims currently recorded for an account
func (p *Provider) GetClaims(ctx context.Context, accountID string) (domain.Claims, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var ident domain.Identity
	if err := p.db.WithContext(ctx).Select("account_id", "role", "admin").First(&ident, "account_id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Claims{}, domain.ErrNotFound
		}
		return domain.Claims{}, err
	}
	return domain.Claims{Role: ident.Role, Admin: ident.Admin}, nil
}

// SetClaims overwrites the custom claims of an account. Tokens issued after
// this call carry the new values.
func (p *Provider) SetClaims(ctx context.Context, accountID string, claims domain.Claims) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	res := p.db.WithContext(ctx).Model(&domain.Identity{}).
		Where("account_id = ?", accountID).
		Updates(map[string]any{"role": claims.Role, "admin": claims.Admin})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// MySQL reports zero rows for an unchanged row, so confirm existence
		var n int64
		if err := p.db.WithContext(ctx).Model(&domain.Identity{}).Where("account_id = ?", accountID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrNotFound
		}
	}
	return nil
}
