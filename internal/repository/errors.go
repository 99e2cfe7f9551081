package repository

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/vietanh2810/shopstore/internal/repository/dao"
)

var (
	ErrListingNotFound = dao.ErrListingNotFound
	ErrLoadFailed      = errors.New("load failed")
	ErrSaveFailed      = errors.New("save failed")
	ErrExecutorClosed  = errors.New("executor closed")
	ErrOwnerExists     = errors.New("owner already exists")
)

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
