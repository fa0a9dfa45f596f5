package transaction

import "context"

// Tx はトランザクションを表すインターフェース
// 状態遷移と決済レコード更新を同一トランザクションで確定させるための抽象化で、
// アプリケーション層がインフラ層（sqlx等）へ依存しないようにする
type Tx interface {
	// Commit はトランザクションをコミットする
	Commit() error
	// Rollback はトランザクションをロールバックする
	// defer での呼び出しを想定し、コミット済みの場合のエラーは無視してよい
	Rollback() error
}

// Manager は新しいトランザクションを発行する
type Manager interface {
	Begin(ctx context.Context) (Tx, error)
}
