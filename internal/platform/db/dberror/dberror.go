// Package dberror はドライバ固有のエラーを分類します。
package dberror

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrUnavailable はストレージ自体に到達できないことを示します。
var ErrUnavailable = errors.New("store unavailable")

// Wrap は op を付けてエラーを包みます。到達不能と判定したエラーには ErrUnavailable も付与します。
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsUnavailable(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsUnavailable はエラーがストレージへの到達不能（接続拒否・接続断・キャンセル）を表すかを判定します。
// 制約違反やSQLエラーなど、接続が生きている状態で起きたエラーには false を返します。
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
