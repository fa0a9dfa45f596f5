package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-coworking-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-coworking-reservation/internal/pkg/metrics"
)

// subscriberBuffer は購読者チャネルのバッファサイズ
// バッファが溢れた購読者は切断扱いとし、配信側は決してブロックしない
const subscriberBuffer = 16

// Subscriber はイベントストリームの購読者を表す
type Subscriber struct {
	id      string
	spaceID string
	ch      chan Event
}

// Events は購読者が受信するイベントチャネルを返す
// Hub が購読者を切り離すとチャネルはクローズされる
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Hub はスロット状態変化を購読者へファンアウトする
// 購読者集合は Hub が単独で所有し、外部からは Subscribe/Unsubscribe 経由でのみ触れる
type Hub struct {
	mu        sync.RWMutex
	subs      map[string]*Subscriber
	heartbeat time.Duration
	metrics   *metrics.Metrics
	stopCh    chan struct{}
	doneCh    chan struct{}
	closed    bool
}

// NewHub は新しい Hub を作成する
func NewHub(heartbeatInterval time.Duration, m *metrics.Metrics) *Hub {
	return &Hub{
		subs:      make(map[string]*Subscriber),
		heartbeat: heartbeatInterval,
		metrics:   m,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start は生存確認のハートビート配信ループを開始する（ブロックする）
func (h *Hub) Start(ctx context.Context) {
	logger.Info("通知ハブ開始", zap.Duration("heartbeat_interval", h.heartbeat))

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	defer close(h.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("通知ハブ停止（コンテキストキャンセル）")
			h.closeAll()
			return
		case <-h.stopCh:
			logger.Info("通知ハブ停止（シグナル受信）")
			h.closeAll()
			return
		case <-ticker.C:
			h.Publish(Event{Type: EventHeartbeat, Timestamp: time.Now().UTC()})
		}
	}
}

// Stop はハブを停止し、全購読者を切断する
func (h *Hub) Stop() {
	close(h.stopCh)
	<-h.doneCh
}

// Subscribe はスペースのイベントストリーム購読を開始する
// 購読開始前に発生したイベントは届かないため、購読者は別途現在状態を取得すること
func (h *Hub) Subscribe(spaceID string) *Subscriber {
	sub := &Subscriber{
		id:      uuid.New().String(),
		spaceID: spaceID,
		ch:      make(chan Event, subscriberBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub
	}
	h.subs[sub.id] = sub
	if h.metrics != nil {
		h.metrics.NotifierSubscribers.Set(float64(len(h.subs)))
	}
	logger.Debug("購読者追加", zap.String("subscriber_id", sub.id), zap.String("space_id", spaceID))
	return sub
}

// Unsubscribe は購読を終了する（切断時に呼ぶ）
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub.id)
}

// Publish はイベントを該当スペースの全購読者へ配信する
// 遅い・死んだ購読者にはブロックせず、配信できなかった購読者は切り離す
func (h *Hub) Publish(ev Event) {
	var stale []string

	h.mu.RLock()
	for id, sub := range h.subs {
		if ev.Type != EventHeartbeat && sub.spaceID != ev.SpaceID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// バッファ満杯 = 購読者が受信していない。切り離し対象とする
			stale = append(stale, id)
		}
	}
	h.mu.RUnlock()

	if h.metrics != nil {
		h.metrics.NotifierEventsTotal.WithLabelValues(string(ev.Type)).Inc()
	}

	if len(stale) > 0 {
		h.mu.Lock()
		for _, id := range stale {
			logger.Warn("応答しない購読者を切断", zap.String("subscriber_id", id))
			h.removeLocked(id)
		}
		h.mu.Unlock()
	}
}

// SubscriberCount は現在の購読者数を返す
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) removeLocked(id string) {
	sub, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(sub.ch)
	if h.metrics != nil {
		h.metrics.NotifierSubscribers.Set(float64(len(h.subs)))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id := range h.subs {
		h.removeLocked(id)
	}
}
