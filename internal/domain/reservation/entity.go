package reservation

import "time"

// Status は予約の状態を表す
type Status string

const (
	StatusHeld          Status = "held"           // 仮押さえ中（決済待ち）
	StatusConfirmed     Status = "confirmed"      // 決済完了により確定
	StatusSuspended     Status = "suspended"      // 利用者が決済を中断
	StatusPaymentFailed Status = "payment_failed" // 決済失敗（リトライ可能）
	StatusExpired       Status = "expired"        // 期限切れ
	StatusCancelled     Status = "cancelled"      // キャンセル済み（重複整理など）
)

// validTransitions は許可される状態遷移の一覧
// ここに無い遷移はすべて ErrIllegalTransition で拒否される
var validTransitions = map[Status][]Status{
	StatusHeld:          {StatusConfirmed, StatusSuspended, StatusPaymentFailed, StatusExpired, StatusCancelled},
	StatusSuspended:     {StatusConfirmed, StatusPaymentFailed, StatusExpired},
	StatusPaymentFailed: {StatusConfirmed, StatusExpired},
	// confirmed からの遷移は外部の返金ワークフローによるキャンセルのみ
	StatusConfirmed: {StatusCancelled},
	StatusExpired:   {},
	StatusCancelled: {},
}

// CanTransitionTo は s から next への遷移が許可されているかを返す
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsOccupying は空き判定においてスロットを占有する状態かを返す
// payment_failed も掃除されるまでスロットを占有し続ける（即時解放しないのは
// 決済失敗直後の再予約競争を防ぐための仕様）
func (s Status) IsOccupying() bool {
	switch s {
	case StatusHeld, StatusSuspended, StatusPaymentFailed, StatusConfirmed:
		return true
	}
	return false
}

// IsTerminal は終端状態かを返す
func (s Status) IsTerminal() bool {
	return s == StatusExpired || s == StatusCancelled
}

// HoldTTL は仮押さえの有効期限（デフォルト15分）
// リース期間はこの値ただ一つを正とする
const HoldTTL = 15 * time.Minute

// Reservation は予約エンティティを表す
type Reservation struct {
	ID          string
	SpaceID     string
	OwnerID     string
	Slot        TimeRange
	Status      Status
	PaymentID   *string
	ExpiresAt   time.Time
	ConfirmedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int // 楽観的ロック用
}

// NewHold は仮押さえ状態の新しい予約を作成する
func NewHold(spaceID, ownerID string, slot TimeRange, now time.Time, ttl time.Duration) *Reservation {
	if ttl <= 0 {
		ttl = HoldTTL
	}
	return &Reservation{
		SpaceID:   spaceID,
		OwnerID:   ownerID,
		Slot:      slot,
		Status:    StatusHeld,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   0,
	}
}

// IsLeaseElapsed はリース期限が切れているかを返す
func (r *Reservation) IsLeaseElapsed(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// RemainingLease は残りリース時間を返す（導出値であり保存しない）
// 期限切れの場合は 0 を返す
func (r *Reservation) RemainingLease(now time.Time) time.Duration {
	remaining := r.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Occupies は予約が now 時点でスロットの空きを塞いでいるかを返す
// confirmed は常に占有、それ以外の占有状態はリースが有効な間のみ占有する
func (r *Reservation) Occupies(now time.Time) bool {
	if !r.Status.IsOccupying() {
		return false
	}
	if r.Status == StatusConfirmed {
		return true
	}
	return !r.IsLeaseElapsed(now)
}

// transition は遷移表を確認したうえで状態を変更する
func (r *Reservation) transition(next Status, now time.Time) error {
	if !r.Status.CanTransitionTo(next) {
		return ErrIllegalTransition
	}
	r.Status = next
	r.UpdatedAt = now
	return nil
}

// Confirm は決済成功シグナルにより予約を確定する
func (r *Reservation) Confirm(now time.Time) error {
	if err := r.transition(StatusConfirmed, now); err != nil {
		return err
	}
	confirmedAt := now
	r.ConfirmedAt = &confirmedAt
	return nil
}

// Suspend は利用者による決済中断を記録する
func (r *Reservation) Suspend(now time.Time) error {
	return r.transition(StatusSuspended, now)
}

// MarkPaymentFailed は決済失敗シグナルを記録する
// スロットの占有は掃除されるまで継続する
func (r *Reservation) MarkPaymentFailed(now time.Time) error {
	return r.transition(StatusPaymentFailed, now)
}

// Expire は期限切れ掃除による失効を記録する（Sweeper 専用の遷移）
func (r *Reservation) Expire(now time.Time) error {
	return r.transition(StatusExpired, now)
}

// Cancel は重複整理または返金ワークフローによるキャンセルを記録する
func (r *Reservation) Cancel(now time.Time) error {
	return r.transition(StatusCancelled, now)
}

// Validate は予約の検証を行う
func (r *Reservation) Validate() error {
	if r.SpaceID == "" {
		return ErrSpaceIDRequired
	}
	if r.OwnerID == "" {
		return ErrOwnerIDRequired
	}
	if !r.Slot.Start.Before(r.Slot.End) {
		return ErrInvalidRange
	}
	return nil
}
