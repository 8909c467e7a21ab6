// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"strings" // Email lowercasing
	"testing" // Test helpers

	"travel_marketplace/internal/db"     // Migrations
	"travel_marketplace/internal/domain" // Domain models and errors

	"gorm.io/driver/sqlite" // In-memory SQLite driver
	"gorm.io/gorm"          // GORM ORM library
	"gorm.io/gorm/logger"   // Silent GORM logger
)

// NewDB opens a migrated in-memory database. The pool is pinned to a single
// connection so every query sees the same memory database.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

// SeedAccount inserts an account row
func SeedAccount(t testing.TB, gdb *gorm.DB, id string, variant domain.Variant, role domain.Role) *domain.Account {
	t.Helper()
	acc := &domain.Account{
		ID:            id,
		Variant:       variant,
		Email:         strings.ToLower(id) + "@example.com",
		DisplayName:   id,
		Role:          role,
		PaymentStatus: domain.PaymentNone,
	}
	if variant == domain.VariantPartner {
		acc.AccountStatus = domain.AccountPendingPayment
	}
	if err := gdb.Create(acc).Error; err != nil {
		t.Fatalf("seed account %s: %v", id, err)
	}
	return acc
}
