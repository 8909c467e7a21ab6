package main

import (
	"travel_marketplace/internal/config" // Custom import path (Config)
	"travel_marketplace/internal/db"     // Custom import path (Database)
)

// Main entry point for migration
func main() {
	cfg := config.LoadConfig() // Load configuration
	db.Migrate(cfg.DSN())
}
