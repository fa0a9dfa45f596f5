package notifier

import (
	"time"

	"github.com/sanosuguru/go-coworking-reservation/internal/domain/reservation"
)

// EventType はスロット状態変化イベントの種別を表す
type EventType string

const (
	EventSlotOccupied EventType = "slot_occupied"
	EventSlotFreed    EventType = "slot_freed"
	EventHeartbeat    EventType = "heartbeat"
)

// Event は購読者へ配信されるスロット状態変化イベント
type Event struct {
	Type      EventType `json:"type"`
	SpaceID   string    `json:"space_id,omitempty"`
	Start     time.Time `json:"start,omitempty"`
	End       time.Time `json:"end,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSlotOccupied はスロット占有イベントを作成する
func NewSlotOccupied(spaceID string, slot reservation.TimeRange, now time.Time) Event {
	return Event{
		Type:      EventSlotOccupied,
		SpaceID:   spaceID,
		Start:     slot.Start,
		End:       slot.End,
		Timestamp: now,
	}
}

// NewSlotFreed はスロット解放イベントを作成する
func NewSlotFreed(spaceID string, slot reservation.TimeRange, now time.Time) Event {
	return Event{
		Type:      EventSlotFreed,
		SpaceID:   spaceID,
		Start:     slot.Start,
		End:       slot.End,
		Timestamp: now,
	}
}
