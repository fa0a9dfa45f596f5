package reservation

import "errors"

// Reservation ドメインのエラー定義
var (
	ErrReservationNotFound = errors.New("予約が見つかりません")
	ErrInvalidRange        = errors.New("時間帯の指定が不正です")
	ErrRangeTooShort       = errors.New("予約時間が最小時間を下回っています")
	ErrRangeTooLong        = errors.New("予約時間が最大時間を超えています")
	ErrConflict            = errors.New("指定の時間帯は既に予約されています")
	ErrStaleState          = errors.New("予約の状態が変更されています（楽観的ロックの競合）")
	ErrIllegalTransition   = errors.New("許可されていない状態遷移です")
	ErrUnavailable         = errors.New("ストレージが一時的に利用できません")
	ErrSpaceIDRequired     = errors.New("スペースIDは必須です")
	ErrOwnerIDRequired     = errors.New("オーナーIDは必須です")
)
