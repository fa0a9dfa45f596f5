package clock

import (
	"sync"
	"time"
)

// Clock は現在時刻を供給するインターフェース
// リース残時間の検証など、時刻を制御するテストのために注入可能にする
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystem は time.Now に基づくクロックを返す
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// FakeClock はテスト用の操作可能なクロック
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake は指定時刻から始まる操作可能なクロックを返す
func NewFake(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance はクロックを d だけ進める
func (f *FakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Set はクロックを指定時刻に設定する
func (f *FakeClock) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t.UTC()
}
