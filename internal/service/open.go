package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vietanh2810/shopstore/internal/config"
	"github.com/vietanh2810/shopstore/internal/repository"
)

// Open builds a Manager for conf. With UseSQL the store is kept in the
// database returned by openDB, migrating the JSON file into it when the
// database is empty. When the database cannot be reached Open fails, unless
// FallbackToFile is set, in which case the file is used instead. extra
// options are applied after the ones derived from conf.
func Open(ctx context.Context, conf *config.StoreConfig, openDB func() (*gorm.DB, error), extra ...Option) (*Manager, error) {
	opts := append([]Option{WithFlushInterval(conf.FlushInterval)}, extra...)

	if !conf.UseSQL {
		return New(ctx, repository.NewFileProvider(conf.FilePath), opts...)
	}

	m, err := openSQL(ctx, conf, openDB, opts)
	if err == nil {
		return m, nil
	}
	if !conf.FallbackToFile {
		return nil, err
	}

	// Changes accepted now stay in the file. Once the database holds data it
	// is never migrated again, so these must be reconciled by hand.
	zap.L().Error("sql store unavailable, falling back to file store; changes made until restart will not reach the database",
		zap.String("path", conf.FilePath), zap.Error(err))

	return New(ctx, repository.NewFileProvider(conf.FilePath), opts...)
}

func openSQL(ctx context.Context, conf *config.StoreConfig, openDB func() (*gorm.DB, error), opts []Option) (*Manager, error) {
	gormDB, err := openDB()
	if err != nil {
		return nil, fmt.Errorf("openDB -> %w", err)
	}

	if conf.MigrateFromFile {
		opts = append(opts, WithMigrationSource(repository.NewFileProvider(conf.FilePath)))
	}

	m, err := New(ctx, repository.NewSQLProvider(gormDB, conf.SQLWorkers), opts...)
	if err != nil {
		if sqlDB, dbErr := gormDB.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}
	return m, nil
}
