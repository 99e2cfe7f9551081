package service

import (
	"errors"

	"github.com/vietanh2810/shopstore/internal/repository"
)

var (
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrInvalidName     = errors.New("invalid name")
	ErrInvalidListing  = errors.New("invalid listing")
	ErrTabLimitReached = errors.New("tab limit reached")
	ErrTabNotFound     = errors.New("tab not found")
	ErrManagerClosed   = errors.New("shop manager closed")
	// ErrNotPersisted wraps backend write failures. The in-memory change it
	// refers to has already been applied and is kept.
	ErrNotPersisted = errors.New("change not persisted")

	ErrOwnerExists    = repository.ErrOwnerExists
	ErrExecutorClosed = repository.ErrExecutorClosed
)
