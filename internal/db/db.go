package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vietanh2810/shopstore/internal/config"
)

func Open(conf *config.PostgresConfig) (*gorm.DB, error) {
	if conf.Driver == config.DriverSQLite {
		return OpenSQLite(conf.DSN)
	}

	dsn := conf.DSN
	if dsn == "" {
		dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
			conf.Host, conf.User, conf.Password, conf.Name, conf.Port, conf.SSLMode, conf.TimeZone)
	}

	db, err := OpenPostgresWithURL(dsn)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db.DB -> %w", err)
	}
	configurePool(sqlDB, conf)

	return db, nil
}

// configurePool applies the pool limits of conf. Zero values keep the
// database/sql defaults.
func configurePool(sqlDB *sql.DB, conf *config.PostgresConfig) {
	if conf.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(conf.MaxOpenConns)
	}
	if conf.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(conf.MaxIdleConns)
	}
	if conf.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(conf.ConnMaxLifetime)
	}
}

func OpenPostgresWithURL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("gorm.Open -> %w", err)
	}

	zap.L().Info("connected to postgres")
	return db, nil
}

// OpenSQLite opens an embedded database at path, creating its directory.
// ":memory:" or an empty path gives a private in-memory database.
func OpenSQLite(path string) (*gorm.DB, error) {
	if path == "" {
		path = ":memory:"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("os.MkdirAll -> %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("gorm.Open -> %w", err)
	}

	// sqlite allows one writer; a single connection also keeps :memory: shared.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db.DB -> %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	zap.L().Info("opened sqlite database", zap.String("path", path))
	return db, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}
}
