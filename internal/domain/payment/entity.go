package payment

import "time"

// Status は決済の状態を表す
// 決済プロバイダ連携は外部の責務であり、本エンジンは状態を入力シグナルとして扱う
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// Payment は決済エンティティを表す
type Payment struct {
	ID            string
	ReservationID string
	Amount        int
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewPayment は保留状態の新しい決済を作成する
func NewPayment(reservationID string, amount int, now time.Time) *Payment {
	return &Payment{
		ReservationID: reservationID,
		Amount:        amount,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// MarkSucceeded は決済成功を記録する
func (p *Payment) MarkSucceeded(now time.Time) error {
	if p.Status != StatusPending {
		return ErrPaymentNotPending
	}
	p.Status = StatusSucceeded
	p.UpdatedAt = now
	return nil
}

// MarkFailed は決済失敗を記録する
func (p *Payment) MarkFailed(now time.Time) error {
	if p.Status != StatusPending {
		return ErrPaymentNotPending
	}
	p.Status = StatusFailed
	p.UpdatedAt = now
	return nil
}

// Refund は返金を記録する（外部ワークフローからのみ呼ばれる）
func (p *Payment) Refund(now time.Time) error {
	if p.Status != StatusSucceeded {
		return ErrPaymentNotSucceeded
	}
	p.Status = StatusRefunded
	p.UpdatedAt = now
	return nil
}

// Validate は決済の検証を行う
func (p *Payment) Validate() error {
	if p.ReservationID == "" {
		return ErrReservationIDRequired
	}
	if p.Amount < 0 {
		return ErrInvalidAmount
	}
	return nil
}
