package application

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-coworking-reservation/internal/config"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/space"
	"github.com/sanosuguru/go-coworking-reservation/internal/pkg/clock"
	"github.com/sanosuguru/go-coworking-reservation/internal/pkg/logger"
)

// SlotState はビューアへ返すスロットの状態
type SlotState string

const (
	SlotAvailable SlotState = "available"
	SlotHeld      SlotState = "held"
	SlotConfirmed SlotState = "confirmed"
	SlotPast      SlotState = "past"
)

// SlotStatus は1時間刻みのスロット状態
// LeaseRemainingSec は held のときのみ設定される導出値（保存しない）
type SlotStatus struct {
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	State             SlotState `json:"state"`
	LeaseRemainingSec int64     `json:"lease_remaining_sec,omitempty"`
}

// cachedSlot はキャッシュに保存される形
// 残りリース時間は含めず、ExpiresAt から毎回導出する
type cachedSlot struct {
	Start     time.Time  `json:"start"`
	End       time.Time  `json:"end"`
	Occupancy string     `json:"occupancy"` // free / held / confirmed
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// AvailabilityService は空き判定とスロット状態スナップショットを提供する
type AvailabilityService struct {
	spaceRepo       space.Repository
	reservationRepo reservation.Repository
	cache           SlotSnapshotCache
	clk             clock.Clock
	cfg             config.BookingConfig
}

func NewAvailabilityService(
	sr space.Repository,
	rr reservation.Repository,
	cache SlotSnapshotCache,
	clk clock.Clock,
	cfg config.BookingConfig,
) *AvailabilityService {
	return &AvailabilityService{
		spaceRepo:       sr,
		reservationRepo: rr,
		cache:           cache,
		clk:             clk,
		cfg:             cfg,
	}
}

// CheckAvailability は時間帯に占有中の予約が無いかを判定する
// held / suspended / payment_failed（リース有効）/ confirmed が占有として扱われる
func (s *AvailabilityService) CheckAvailability(ctx context.Context, spaceID string, start, end time.Time) (bool, error) {
	slot, err := reservation.NewTimeRange(start, end)
	if err != nil {
		return false, err
	}
	if _, err := s.spaceRepo.GetByID(ctx, spaceID); err != nil {
		return false, err
	}

	var occupying []*reservation.Reservation
	err = withStorageRetry(ctx, func() error {
		var listErr error
		occupying, listErr = s.reservationRepo.ListOccupying(ctx, spaceID, slot, s.clk.Now())
		return listErr
	})
	if err != nil {
		return false, err
	}
	return len(occupying) == 0, nil
}

// GetSlotStatuses は指定日のスロット状態スナップショットを返す
// 新規購読者はまずこのスナップショットを取得し、以降のイベントを適用する
func (s *AvailabilityService) GetSlotStatuses(ctx context.Context, spaceID string, date time.Time) ([]SlotStatus, error) {
	sp, err := s.spaceRepo.GetByID(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dateKey := day.Format("2006-01-02")

	slots, err := s.loadSlots(ctx, sp, day, dateKey)
	if err != nil {
		return nil, err
	}

	// 最終的な状態は呼び出し時点の時刻から導出する（リース残時間は単調に減少する）
	now := s.clk.Now()
	result := make([]SlotStatus, len(slots))
	for i, c := range slots {
		result[i] = deriveSlotStatus(c, now)
	}
	return result, nil
}

func (s *AvailabilityService) loadSlots(ctx context.Context, sp *space.Space, day time.Time, dateKey string) ([]cachedSlot, error) {
	if s.cache != nil {
		if data, err := s.cache.GetSnapshot(ctx, sp.ID, dateKey); err == nil {
			var slots []cachedSlot
			if err := json.Unmarshal(data, &slots); err == nil {
				logger.Debug("キャッシュヒット", zap.String("space_id", sp.ID), zap.String("date", dateKey))
				return slots, nil
			}
		}
	}

	slots, err := s.buildSlots(ctx, sp, day)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(slots); err == nil {
			if cacheErr := s.cache.SetSnapshot(ctx, sp.ID, dateKey, data, s.cfg.SlotCacheTTL); cacheErr != nil {
				logger.Warn("キャッシュ保存エラー", zap.Error(cacheErr))
			}
		}
	}
	return slots, nil
}

func (s *AvailabilityService) buildSlots(ctx context.Context, sp *space.Space, day time.Time) ([]cachedSlot, error) {
	openHour, closeHour := sp.OpenHour, sp.CloseHour
	if sp.IsAlwaysOpen() {
		openHour, closeHour = 0, 24
	}

	dayRange := reservation.TimeRange{
		Start: day.Add(time.Duration(openHour) * time.Hour),
		End:   day.Add(time.Duration(closeHour) * time.Hour),
	}

	var reservations []*reservation.Reservation
	err := withStorageRetry(ctx, func() error {
		var listErr error
		reservations, listErr = s.reservationRepo.ListBySpaceAndRange(ctx, sp.ID, dayRange)
		return listErr
	})
	if err != nil {
		return nil, err
	}

	slots := make([]cachedSlot, 0, closeHour-openHour)
	for h := openHour; h < closeHour; h++ {
		slot := reservation.TimeRange{
			Start: day.Add(time.Duration(h) * time.Hour),
			End:   day.Add(time.Duration(h+1) * time.Hour),
		}
		c := cachedSlot{Start: slot.Start, End: slot.End, Occupancy: "free"}
		for _, res := range reservations {
			if !res.Slot.Overlaps(slot) {
				continue
			}
			if res.Status == reservation.StatusConfirmed {
				c.Occupancy = "confirmed"
				c.ExpiresAt = nil
				break
			}
			if res.Status.IsOccupying() {
				expiresAt := res.ExpiresAt
				c.Occupancy = "held"
				c.ExpiresAt = &expiresAt
			}
		}
		slots = append(slots, c)
	}
	return slots, nil
}

// deriveSlotStatus はキャッシュ可能な占有情報から now 時点の最終状態を導出する
func deriveSlotStatus(c cachedSlot, now time.Time) SlotStatus {
	st := SlotStatus{Start: c.Start, End: c.End}

	if !c.End.After(now) {
		st.State = SlotPast
		return st
	}

	switch c.Occupancy {
	case "confirmed":
		st.State = SlotConfirmed
	case "held":
		// リースが切れた仮押さえは掃除を待たず空きとして見せる
		if c.ExpiresAt != nil && c.ExpiresAt.After(now) {
			st.State = SlotHeld
			st.LeaseRemainingSec = int64(c.ExpiresAt.Sub(now).Seconds())
		} else {
			st.State = SlotAvailable
		}
	default:
		st.State = SlotAvailable
	}
	return st
}
