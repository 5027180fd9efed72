// Package db wires the gorm/postgres connection and applies migrations,
// grounded on the teacher's gorm.io/driver/postgres + golang-migrate stack.
package db

import (
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects gorm to the relational store (spec.md §1: "the relational
// store is consumed as a transactional SQL database with row-level locks
// and JSON columns").
func Open(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return gdb, nil
}

// Migrate applies the migrations/ directory against dsn, creating the four
// schemas vantage_initiator, vantage_fact, vantage_card and vantage_identity
// and the tables in them and in public.
func Migrate(dsn, migrationsPath string) error {
	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		return fmt.Errorf("new migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
