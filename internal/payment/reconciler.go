// Package payment turns verified gateway notifications into privilege
// transitions on accounts.
package payment

import (
	"context" // Context for timeouts and cancellation
	"errors"  // Error classification
	"fmt"     // Error wrapping

	"travel_marketplace/internal/domain" // Domain models and errors
	"travel_marketplace/internal/store"  // Account store types

	"github.com/sirupsen/logrus" // Logging library
)

// Outcome is the result of a successfully handled notification
type Outcome string

const (
	OutcomeIgnored     Outcome = "ignored"      // not a payment notification
	OutcomeNotApproved Outcome = "not_approved" // confirmed status is not approved, nothing to apply
	OutcomeApplied     Outcome = "applied"      // transition written (or re-written)
)

// DetailFetcher returns the gateway's authoritative transaction record
type DetailFetcher interface {
	PaymentDetail(ctx context.Context, transactionID string) (*domain.PaymentDetail, error)
}

// AccountStore is the subset of the account store the reconciler writes to
type AccountStore interface {
	ApplyPayment(ctx context.Context, id string, variant domain.Variant, t store.PaymentTransition) (*domain.Account, error)
	MarkNeedsReconciliation(ctx context.Context, id string) error
}

// ClaimsWriter updates identity provider claims
type ClaimsWriter interface {
	SetClaims(ctx context.Context, accountID string, claims domain.Claims) error
}

// transition is what an approved transaction type authorizes
type transition struct {
	variant domain.Variant
	write   store.PaymentTransition
}

var transitions = map[domain.TransactionType]transition{
	domain.TransactionUserSubscription: {
		variant: domain.VariantTraveler,
		write:   store.PaymentTransition{Role: domain.RoleTravelerElevated, PaymentStatus: domain.PaymentPaid},
	},
	domain.TransactionPartnerSubscription: {
		variant: domain.VariantPartner,
		write:   store.PaymentTransition{Role: domain.RolePartner, PaymentStatus: domain.PaymentPaid, AccountStatus: domain.AccountApproved},
	},
}

// Reconciler applies approved payments. Every write is an overwrite to a
// terminal value, so duplicate or reordered deliveries converge.
type Reconciler struct {
	gateway DetailFetcher
	store   AccountStore
	claims  ClaimsWriter
	log     logrus.FieldLogger
}

// NewReconciler creates a reconciler
func NewReconciler(gateway DetailFetcher, accounts AccountStore, claims ClaimsWriter, log logrus.FieldLogger) *Reconciler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Reconciler{gateway: gateway, store: accounts, claims: claims, log: log}
}

// Reconcile handles a notification that already passed signature verification
func (r *Reconciler) Reconcile(ctx context.Context, n domain.PaymentNotification) (Outcome, error) {
	log := r.log.WithFields(logrus.Fields{"transaction_id": n.TransactionID, "request_id": n.RequestID})

	if n.Topic != domain.TopicPayment { // Merchant orders and other categories
		log.WithField("topic", n.Topic).Info("notification ignored")
		return OutcomeIgnored, nil
	}

	detail, err := r.gateway.PaymentDetail(ctx, n.TransactionID) // Never trust the notification body
	if err != nil {
		log.WithError(err).Error("payment detail fetch failed")
		return "", err
	}
	log = log.WithFields(logrus.Fields{
		"status":           detail.Status,
		"account_id":       detail.ExternalReference,
		"transaction_type": detail.Metadata.TransactionType,
	})

	if detail.Status != domain.GatewayStatusApproved {
		log.Info("payment not approved, no transition")
		return OutcomeNotApproved, nil
	}
	if detail.ExternalReference == "" {
		log.Error("approved payment without external reference")
		return "", domain.ErrMissingReference
	}
	tr, ok := transitions[detail.Metadata.TransactionType]
	if !ok {
		log.Error("approved payment with unknown transaction type")
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownTransition, detail.Metadata.TransactionType)
	}

	acc, err := r.store.ApplyPayment(ctx, detail.ExternalReference, tr.variant, tr.write)
	if err != nil {
		log.WithError(err).Error("applying payment transition failed")
		return "", fmt.Errorf("apply payment %s: %w", n.TransactionID, err)
	}

	claims := domain.Claims{Role: acc.Role, Admin: acc.Role == domain.RoleAdmin} // Mirror the committed row
	if err := r.claims.SetClaims(ctx, acc.ID, claims); err != nil {
		// The row is already at its terminal value; a redelivery rewrites both sides.
		if markErr := r.store.MarkNeedsReconciliation(ctx, acc.ID); markErr != nil {
			log.WithError(markErr).Error("marking account for reconciliation failed")
		}
		log.WithError(err).Error("claims update failed after payment transition")
		return "", errors.Join(domain.ErrTransient, fmt.Errorf("update claims for %s: %w", acc.ID, err))
	}

	log.WithField("role", acc.Role).Info("payment transition applied")
	return OutcomeApplied, nil
}
