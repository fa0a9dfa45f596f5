package lock

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotAcquired = errors.New("ロックを取得できませんでした")
	ErrNotOwned    = errors.New("ロックの所有者ではありません")
)

// Lock は取得済みの排他ロックを表すインターフェース
type Lock interface {
	// Release はロックを解放する
	Release(ctx context.Context) error
	// Extend はロックの有効期限を延長する
	Extend(ctx context.Context, ttl time.Duration) error
}

// Manager は排他ロックを管理するインターフェース
// アプリケーション層がインフラ層（Redis等）に依存しないようにするための抽象化
type Manager interface {
	// Acquire はロックを取得する
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
	// AcquireWithRetry はリトライ付きでロックを取得する
	AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (Lock, error)
}
