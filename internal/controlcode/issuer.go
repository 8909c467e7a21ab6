// Package controlcode allocates the short human-facing account identifier.
package controlcode

import (
	"context"     // Context for timeouts and cancellation
	"crypto/rand" // Secure randomness
	"errors"      // Error classification
	"fmt"         // Error wrapping
	"math/big"    // Random index bounds

	"travel_marketplace/internal/domain" // Domain models and errors

	"github.com/sirupsen/logrus" // Logging library
)

const (
	// MaxAttempts bounds how many candidates one issuance tries
	MaxAttempts = 10
	// RandomLength is the number of base-36 characters after the prefix
	RandomLength = 6

	alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// Store is the subset of the account store the issuer needs
type Store interface {
	Get(ctx context.Context, id string) (*domain.Account, error)
	ControlCodeExists(ctx context.Context, code string) (bool, error)
	AssignControlCode(ctx context.Context, id, code string) error
}

// Reserver holds a candidate across replicas while it is checked and written
type Reserver interface {
	Reserve(ctx context.Context, value string) (bool, error)
	Release(ctx context.Context, value string) error
}

// Result is a successful allocation
type Result struct {
	Code     string
	Attempts int  // candidates tried, 0 when the account already had a code
	Existing bool // the account already held Code
}

// Issuer assigns control codes
type Issuer struct {
	store    Store
	reserver Reserver
	log      logrus.FieldLogger
	random   func() (string, error)
}

// NewIssuer creates an issuer. reserver may be nil.
func NewIssuer(store Store, reserver Reserver, log logrus.FieldLogger) *Issuer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Issuer{store: store, reserver: reserver, log: log, random: randomSuffix}
}

// Issue assigns a code to accountID unless it already has one. The caller
// must own the account or hold the admin claim.
func (i *Issuer) Issue(ctx context.Context, caller domain.Caller, accountID string, variant domain.Variant) (Result, error) {
	if caller.AccountID == "" {
		return Result{}, domain.ErrUnauthenticated
	}
	if accountID == "" || !variant.Valid() {
		return Result{}, fmt.Errorf("%w: accountId and a valid variant are required", domain.ErrInvalidArgument)
	}
	if caller.AccountID != accountID && !caller.Admin { // Owner or admin only
		return Result{}, domain.ErrPermissionDenied
	}

	acc, err := i.store.Get(ctx, accountID)
	if err != nil {
		return Result{}, err
	}
	if acc.Variant != variant {
		return Result{}, fmt.Errorf("%w: account is a %s", domain.ErrInvalidArgument, acc.Variant)
	}
	if acc.ControlCode != nil {
		return Result{Code: *acc.ControlCode, Existing: true}, nil // Never reassigned
	}

	log := i.log.WithFields(logrus.Fields{"account_id": accountID, "variant": variant})
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		suffix, err := i.random()
		if err != nil {
			return Result{}, err
		}
		code := variant.ControlCodePrefix() + "-" + suffix // e.g. TR-7K2Q9Z

		ok, err := i.tryAssign(ctx, accountID, code)
		switch {
		case err == nil && ok:
			log.WithFields(logrus.Fields{"control_code": code, "attempts": attempt}).Info("control code assigned")
			return Result{Code: code, Attempts: attempt}, nil
		case errors.Is(err, domain.ErrControlCodeAssigned):
			// A concurrent issuance for the same account won; its code stands.
			current, getErr := i.store.Get(ctx, accountID)
			if getErr != nil {
				return Result{}, getErr
			}
			if current.ControlCode == nil {
				return Result{}, err
			}
			return Result{Code: *current.ControlCode, Attempts: attempt, Existing: true}, nil
		case err != nil:
			log.WithError(err).WithField("control_code", code).Error("control code issuance failed")
			return Result{}, err
		}
		log.WithField("control_code", code).Debug("control code candidate taken")
	}

	log.WithField("attempts", MaxAttempts).Error("control code allocation exhausted")
	return Result{}, domain.ErrAllocationExhausted
}

// tryAssign returns false when the candidate is already taken. Writing is the
// last step and happens only after the candidate is confirmed free.
func (i *Issuer) tryAssign(ctx context.Context, accountID, code string) (bool, error) {
	if i.reserver != nil {
		ok, err := i.reserver.Reserve(ctx, code)
		if err != nil {
			return false, fmt.Errorf("%w: reserve control code: %v", domain.ErrTransient, err)
		}
		if !ok {
			return false, nil // Another replica is trying this candidate
		}
		defer func() {
			if err := i.reserver.Release(context.WithoutCancel(ctx), code); err != nil {
				i.log.WithError(err).WithField("control_code", code).Warn("releasing control code reservation failed")
			}
		}()
	}

	taken, err := i.store.ControlCodeExists(ctx, code)
	if err != nil {
		return false, err
	}
	if taken {
		return false, nil // Held by some account already
	}
	if err := i.store.AssignControlCode(ctx, accountID, code); err != nil {
		return false, err
	}
	return true, nil
}

// randomSuffix draws RandomLength characters uniformly from alphabet
func randomSuffix() (string, error) {
	base := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, RandomLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", err
		}
		buf[i] = alphabet[n.Int64()] // Uniform over 36 symbols
	}
	return string(buf), nil
}
