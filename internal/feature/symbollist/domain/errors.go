// Package domain はsymbollistフィーチャーのドメインエラーを定義します。
package domain

import (
	"errors"

	"jpstock_backend/internal/platform/db/dberror"
)

var (
	// ErrSymbolNotFound は指定コードの銘柄が存在しないことを示します。
	ErrSymbolNotFound = errors.New("stock not found")
	// ErrStockListUnavailable はライブ取得とスナップショットの両方が失敗したことを示します。
	ErrStockListUnavailable = errors.New("stock list unavailable")
	// ErrSnapshotNotFound はスナップショットが未保存であることを示します。
	ErrSnapshotNotFound = errors.New("stock list snapshot not found")
	// ErrInvalidParameter はクエリパラメータが不正であることを示します。
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrStoreUnavailable はストレージ自体に到達できないことを示します。
	ErrStoreUnavailable = dberror.ErrUnavailable
)
