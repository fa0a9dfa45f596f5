package space

import (
	"time"

	"github.com/sanosuguru/go-coworking-reservation/internal/domain/reservation"
)

// Space はコワーキングスペースエンティティを表す
// カタログ側が所有するマスタであり、本エンジンからは読み取り専用
type Space struct {
	ID         string
	Name       string
	HourlyRate int
	OpenHour   int // 営業開始時刻（0-23）
	CloseHour  int // 営業終了時刻（1-24）
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsAlwaysOpen は24時間営業かを返す
func (s *Space) IsAlwaysOpen() bool {
	return s.OpenHour == 0 && s.CloseHour == 24
}

// WithinOperatingHours は時間帯が営業時間内に収まっているかを返す
// 24時間営業でない場合、予約は同一日の営業時間窓に収まる必要がある
func (s *Space) WithinOperatingHours(slot reservation.TimeRange) bool {
	if s.IsAlwaysOpen() {
		return true
	}

	start := slot.Start
	end := slot.End

	openAt := time.Date(start.Year(), start.Month(), start.Day(), s.OpenHour, 0, 0, 0, start.Location())
	closeAt := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location()).
		Add(time.Duration(s.CloseHour) * time.Hour)

	return !start.Before(openAt) && !end.After(closeAt)
}

// Amount は時間帯に対する料金を計算する（時間単位、切り上げ）
func (s *Space) Amount(slot reservation.TimeRange) int {
	hours := int(slot.Duration().Hours())
	if slot.Duration()%time.Hour != 0 {
		hours++
	}
	return hours * s.HourlyRate
}

// Validate はスペースの検証を行う
func (s *Space) Validate() error {
	if s.Name == "" {
		return ErrSpaceNameRequired
	}
	if s.OpenHour < 0 || s.OpenHour > 23 {
		return ErrInvalidOperatingHours
	}
	if s.CloseHour <= s.OpenHour || s.CloseHour > 24 {
		return ErrInvalidOperatingHours
	}
	if s.HourlyRate < 0 {
		return ErrInvalidHourlyRate
	}
	return nil
}
