package payment

import "errors"

// Payment ドメインのエラー定義
var (
	ErrPaymentNotFound       = errors.New("決済が見つかりません")
	ErrPaymentNotPending     = errors.New("決済は保留中ではありません")
	ErrPaymentNotSucceeded   = errors.New("決済は成功していません")
	ErrReservationIDRequired = errors.New("予約IDは必須です")
	ErrInvalidAmount         = errors.New("金額は0以上である必要があります")
)
