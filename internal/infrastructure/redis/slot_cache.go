package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// SlotCache はスロット状態スナップショットのキャッシュを管理する
// 残りリース時間は導出値なのでキャッシュには含めない（呼び出し時に再計算する）
type SlotCache struct {
	client *redis.Client
}

// NewSlotCache は新しいSlotCacheインスタンスを作成する
func NewSlotCache(client *redis.Client) *SlotCache {
	return &SlotCache{client: client}
}

// GetSnapshot はスペース・日付のスナップショットをキャッシュから取得する
func (c *SlotCache) GetSnapshot(ctx context.Context, spaceID, date string) ([]byte, error) {
	key := c.snapshotKey(spaceID, date)
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	return val, nil
}

// SetSnapshot はスペース・日付のスナップショットをキャッシュに保存する
func (c *SlotCache) SetSnapshot(ctx context.Context, spaceID, date string, data []byte, ttl time.Duration) error {
	key := c.snapshotKey(spaceID, date)
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate は指定した日付のスナップショットを無効化する
// 状態遷移が起きたら必ず呼ぶこと
func (c *SlotCache) Invalidate(ctx context.Context, spaceID string, dates ...string) error {
	if len(dates) == 0 {
		return nil
	}
	keys := make([]string, len(dates))
	for i, d := range dates {
		keys[i] = c.snapshotKey(spaceID, d)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *SlotCache) snapshotKey(spaceID, date string) string {
	return fmt.Sprintf("slots:%s:%s", spaceID, date)
}
