// Package privilege gates administrative operations and keeps at least one
// administrator in existence.
package privilege

import (
	"context" // Context for timeouts and cancellation
	"fmt"     // Error wrapping
	"sync"    // In-process mutex

	"travel_marketplace/internal/domain" // Domain models and errors
	"travel_marketplace/internal/store"  // Account store types

	"github.com/sirupsen/logrus" // Logging library
)

// AdminLockKey is the distributed lock serializing admin mutations across replicas
const AdminLockKey = "lock:admin-mutation"

// Store is the subset of the account store the guard needs
type Store interface {
	InAdminTx(ctx context.Context, fn func(store.AdminTx) error) error
	ListAdmins(ctx context.Context) ([]domain.Account, error)
	SetPartnerStatus(ctx context.Context, id string, status domain.AccountStatus) (*domain.Account, error)
	MarkNeedsReconciliation(ctx context.Context, id string) error
}

// ClaimsStore reads and writes identity provider claims
type ClaimsStore interface {
	GetClaims(ctx context.Context, accountID string) (domain.Claims, error)
	SetClaims(ctx context.Context, accountID string, claims domain.Claims) error
}

// Locker provides cross-replica mutual exclusion
type Locker interface {
	WithLock(ctx context.Context, key string, fn func() error) error
}

// Result is the outcome of a grant or revoke
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Guard enforces admin authorization and never lets the last administrator go
type Guard struct {
	store  Store
	claims ClaimsStore
	locker Locker
	log    logrus.FieldLogger

	mu sync.Mutex // single writer within this process
}

// NewGuard creates a guard. locker may be nil for single-replica deployments.
func NewGuard(s Store, claims ClaimsStore, locker Locker, log logrus.FieldLogger) *Guard {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Guard{store: s, claims: claims, locker: locker, log: log}
}

// Authorize rejects callers whose claims do not carry admin=true
func (g *Guard) Authorize(caller domain.Caller) error {
	if caller.AccountID == "" {
		return domain.ErrUnauthenticated
	}
	if !caller.Admin {
		return domain.ErrPermissionDenied
	}
	return nil
}

// ListAdmins returns the current Administrator Set
func (g *Guard) ListAdmins(ctx context.Context, caller domain.Caller) ([]domain.Account, error) {
	if err := g.Authorize(caller); err != nil {
		return nil, err
	}
	return g.store.ListAdmins(ctx)
}

// SetPartnerStatus moves a partner through its lifecycle
func (g *Guard) SetPartnerStatus(ctx context.Context, caller domain.Caller, partnerID string, status domain.AccountStatus) (*domain.Account, error) {
	if err := g.Authorize(caller); err != nil {
		return nil, err
	}
	if partnerID == "" || !status.Valid() {
		return nil, fmt.Errorf("%w: partner id and a valid account status are required", domain.ErrInvalidArgument)
	}
	acc, err := g.store.SetPartnerStatus(ctx, partnerID, status)
	if err != nil {
		return nil, err
	}
	g.log.WithFields(logrus.Fields{"caller_id": caller.AccountID, "target_id": partnerID, "account_status": status}).Info("partner status changed")
	return acc, nil
}

// GrantAdmin gives the account registered under email the admin role
func (g *Guard) GrantAdmin(ctx context.Context, caller domain.Caller, email string) (Result, error) {
	if err := g.Authorize(caller); err != nil {
		return Result{}, err
	}
	if email == "" {
		return Result{}, fmt.Errorf("%w: email is required", domain.ErrInvalidArgument)
	}

	log := g.log.WithFields(logrus.Fields{"caller_id": caller.AccountID, "target_email": email, "operation": "grant_admin"})
	target, changed, err := g.changeRole(ctx, log,
		func(tx store.AdminTx) (*domain.Account, error) { return tx.AccountByEmail(email) },
		func(admins []domain.Account, target *domain.Account) (domain.Role, error) {
			if !contains(admins, caller.AccountID) {
				return "", domain.ErrPermissionDenied
			}
			return domain.RoleAdmin, nil
		})
	if err != nil {
		return Result{}, err
	}
	if !changed {
		return Result{Success: true, Message: fmt.Sprintf("%s is already an administrator", target.Email)}, nil
	}
	return Result{Success: true, Message: fmt.Sprintf("Admin privilege granted to %s", target.Email)}, nil
}

// RevokeAdmin removes the admin role from targetID. Self-revocation and
// revoking the last administrator are refused.
func (g *Guard) RevokeAdmin(ctx context.Context, caller domain.Caller, targetID string) (Result, error) {
	if err := g.Authorize(caller); err != nil {
		return Result{}, err
	}
	if targetID == "" {
		return Result{}, fmt.Errorf("%w: targetAccountId is required", domain.ErrInvalidArgument)
	}
	if targetID == caller.AccountID {
		return Result{}, domain.ErrSelfRevoke
	}

	log := g.log.WithFields(logrus.Fields{"caller_id": caller.AccountID, "target_id": targetID, "operation": "revoke_admin"})
	target, changed, err := g.changeRole(ctx, log,
		func(tx store.AdminTx) (*domain.Account, error) { return tx.Account(targetID) },
		func(admins []domain.Account, target *domain.Account) (domain.Role, error) {
			if target.Role != domain.RoleAdmin {
				if !contains(admins, caller.AccountID) {
					return "", domain.ErrPermissionDenied
				}
				return target.BaseRole(), nil
			}
			if len(admins) <= 1 {
				return "", domain.ErrLastAdmin
			}
			if !contains(admins, caller.AccountID) {
				return "", domain.ErrPermissionDenied
			}
			return target.BaseRole(), nil
		})
	if err != nil {
		return Result{}, err
	}
	if !changed {
		return Result{Success: true, Message: fmt.Sprintf("%s is not an administrator", target.Email)}, nil
	}
	return Result{Success: true, Message: fmt.Sprintf("Admin privilege revoked from %s", target.Email)}, nil
}

// changeRole runs pick and decide against a locked, freshly read
// Administrator Set and writes the new role to the record and the claims as
// one unit. The claims are written before commit; if the commit fails they
// are restored, and if that fails too the account is flagged.
func (g *Guard) changeRole(
	ctx context.Context,
	log logrus.FieldLogger,
	pick func(store.AdminTx) (*domain.Account, error),
	decide func(admins []domain.Account, target *domain.Account) (domain.Role, error),
) (*domain.Account, bool, error) {
	var (
		target        *domain.Account
		changed       bool
		previous      domain.Claims
		claimsWritten bool
	)

	err := g.serialize(ctx, func() error {
		err := g.store.InAdminTx(ctx, func(tx store.AdminTx) error {
			var err error
			if target, err = pick(tx); err != nil {
				return err
			}
			admins, err := tx.Admins() // Fresh, locked Administrator Set
			if err != nil {
				return err
			}
			role, err := decide(admins, target)
			if err != nil {
				return err
			}

			want := domain.Claims{Role: role, Admin: role == domain.RoleAdmin}
			if previous, err = g.claims.GetClaims(ctx, target.ID); err != nil {
				return err
			}
			if target.Role == role && previous == want {
				return nil // Already in the requested state
			}

			if err := tx.SetRole(target.ID, role); err != nil {
				return err
			}
			if err := g.claims.SetClaims(ctx, target.ID, want); err != nil {
				return fmt.Errorf("update claims: %w", err)
			}
			claimsWritten = true // From here a failed commit needs compensation
			changed = true
			target.Role = role
			return nil
		})
		if err != nil && claimsWritten {
			g.compensate(ctx, log, target.ID, previous)
		}
		return err
	})
	if err != nil {
		log.WithError(err).Warn("admin role change refused or failed")
		return nil, false, err
	}
	log.WithFields(logrus.Fields{"changed": changed, "role": target.Role}).Info("admin role change")
	return target, changed, nil
}

// compensate puts the claims back after the record write did not commit
func (g *Guard) compensate(ctx context.Context, log logrus.FieldLogger, accountID string, previous domain.Claims) {
	ctx = context.WithoutCancel(ctx) // Runs even if the request was cancelled
	if err := g.claims.SetClaims(ctx, accountID, previous); err != nil {
		log.WithError(err).Error("restoring claims failed, flagging account for reconciliation")
		if markErr := g.store.MarkNeedsReconciliation(ctx, accountID); markErr != nil {
			log.WithError(markErr).Error("flagging account for reconciliation failed")
		}
	}
}

// serialize holds the local mutex and, when configured, the cross-replica lock
func (g *Guard) serialize(ctx context.Context, fn func() error) error {
	g.mu.Lock() // Single writer in this process
	defer g.mu.Unlock()
	if g.locker == nil {
		return fn()
	}
	return g.locker.WithLock(ctx, AdminLockKey, fn)
}

func contains(accounts []domain.Account, id string) bool {
	for _, a := range accounts {
		if a.ID == id {
			return true
		}
	}
	return false
}
