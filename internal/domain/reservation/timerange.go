package reservation

import "time"

// TimeRange は半開区間 [Start, End) の時間帯を表す
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// NewTimeRange は検証済みの時間帯を作成する
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if !start.Before(end) {
		return TimeRange{}, ErrInvalidRange
	}
	return TimeRange{Start: start, End: end}, nil
}

// Overlaps は半開区間の重なり判定を行う
// a.Start < b.End && b.Start < a.End
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

// Duration は時間帯の長さを返す
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Equal は時間帯が完全に一致するかを返す
func (r TimeRange) Equal(other TimeRange) bool {
	return r.Start.Equal(other.Start) && r.End.Equal(other.End)
}
