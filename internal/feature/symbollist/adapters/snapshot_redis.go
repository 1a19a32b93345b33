package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"jpstock_backend/internal/feature/symbollist/domain"
	"jpstock_backend/internal/feature/symbollist/domain/entity"
	"jpstock_backend/internal/feature/symbollist/usecase"
)

// DefaultSnapshotKey は銘柄一覧スナップショットのRedisキーです。
const DefaultSnapshotKey = "stocklist:snapshot"

// RedisSnapshotStore は銘柄一覧をRedisにJSONで保存します。期限は付けません。
type RedisSnapshotStore struct {
	rdb *redis.Client
	key string
}

var _ usecase.SnapshotStore = (*RedisSnapshotStore)(nil)

// NewRedisSnapshotStore は新しい RedisSnapshotStore を作成します。key が空ならデフォルトを使います。
func NewRedisSnapshotStore(rdb *redis.Client, key string) *RedisSnapshotStore {
	if key == "" {
		key = DefaultSnapshotKey
	}
	return &RedisSnapshotStore{rdb: rdb, key: key}
}

// Load は保存済みの銘柄一覧を返します。
func (s *RedisSnapshotStore) Load(ctx context.Context) ([]entity.StockInfo, error) {
	b, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var stocks []entity.StockInfo
	if err := json.Unmarshal(b, &stocks); err != nil {
		// 壊れたスナップショットは削除する
		_ = s.rdb.Del(ctx, s.key).Err()
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return stocks, nil
}

// Save は銘柄一覧を上書き保存します。
func (s *RedisSnapshotStore) Save(ctx context.Context, stocks []entity.StockInfo) error {
	b, err := json.Marshal(stocks)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key, b, 0).Err()
}
