package space

import "context"

// Repository はスペースリポジトリのインターフェース
// 本エンジンは読み取りのみ行う（書き込みはカタログ側の責務）
type Repository interface {
	// GetByID はIDからスペースを取得する
	GetByID(ctx context.Context, id string) (*Space, error)

	// List はスペース一覧を取得する
	List(ctx context.Context, limit, offset int) ([]*Space, error)
}
