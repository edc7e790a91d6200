package db

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/internal/models"
	"github.com/protocaas/protocaas/pkg/env"
	"github.com/protocaas/protocaas/pkg/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	conn     *gorm.DB
	connOnce sync.Once
)

// Connection returns the process-wide database handle, opening it
// on first use according to the environment.
func Connection() *gorm.DB {
	connOnce.Do(func() {
		var err error
		if conn, err = Open(env.Variables().DatabaseType, env.Variables().DatabaseDSN); err != nil {
			log.Fatal("failed to connect to database", "error", err)
		}
	})

	return conn
}

// Open opens a gorm handle for the given database type and DSN.
func Open(databaseType, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	switch databaseType {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), cfg)
	case "sqlite", "":
		return gorm.Open(sqlite.Open(dsn), cfg)
	default:
		return nil, errors.Errorf("unsupported database type %q", databaseType)
	}
}

// Migrate creates or updates the tables for every document collection.
func Migrate() error {
	return errors.Wrap(Connection().AutoMigrate(models.All...), "auto-migrate")
}
