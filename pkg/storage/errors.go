package storage

import (
	"errors"

	pkgerrors "github.com/absmach/flround/pkg/errors"
)

var (
	ErrNotFound = pkgerrors.ErrNotFound
	ErrConflict = pkgerrors.ErrEntityExists

	ErrDBQuery     = errors.New("database query error")
	ErrDBScan      = errors.New("database scan error")
	ErrCreate      = errors.New("create error")
	ErrUpdate      = errors.New("update error")
	ErrUnsupported = errors.New("unsupported storage type")
)
