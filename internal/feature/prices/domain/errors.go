// Package domain はpricesフィーチャーのドメインエラーを定義します。
package domain

import (
	"errors"

	"jpstock_backend/internal/platform/db/dberror"
)

var (
	// ErrStoreUnavailable はストレージ自体に到達できないことを示します。
	// バッチ処理はこのエラーのみ呼び出し元へ伝播させます。
	ErrStoreUnavailable = dberror.ErrUnavailable
	// ErrInvalidDateRange は開始日が終了日以降であることを示します。
	ErrInvalidDateRange = errors.New("start date must be before end date")
	// ErrStockNotFound は指定コードの銘柄が存在しないことを示します。
	ErrStockNotFound = errors.New("stock not found")
	// ErrInvalidParameter はクエリパラメータが不正であることを示します。
	ErrInvalidParameter = errors.New("invalid parameter")
)
