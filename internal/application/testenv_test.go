package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sanosuguru/go-coworking-reservation/internal/config"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/lock"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/space"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-coworking-reservation/internal/notifier"
)

// === インメモリ実装（外部依存なしでサービス全体を検証するための実装） ===

func testBookingConfig() config.BookingConfig {
	return config.BookingConfig{
		HoldTTL:           reservation.HoldTTL,
		SweepInterval:     time.Minute,
		SweepTimeout:      30 * time.Second,
		WarnHorizon:       time.Hour,
		MinHoldDuration:   time.Hour,
		MaxHoldDuration:   7 * 24 * time.Hour,
		HeartbeatInterval: 30 * time.Second,
		SlotCacheTTL:      30 * time.Second,
	}
}

type memoryTx struct{}

func (memoryTx) Commit() error   { return nil }
func (memoryTx) Rollback() error { return nil }

type memoryTxManager struct{}

func (memoryTxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	return memoryTx{}, nil
}

type memoryReservationRepo struct {
	mu   sync.Mutex
	rows map[string]*reservation.Reservation
}

func newMemoryReservationRepo() *memoryReservationRepo {
	return &memoryReservationRepo{rows: make(map[string]*reservation.Reservation)}
}

func copyReservation(r *reservation.Reservation) *reservation.Reservation {
	c := *r
	return &c
}

func (m *memoryReservationRepo) Create(ctx context.Context, tx transaction.Tx, r *reservation.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// 排他制約相当: 確定済み予約との重なりは拒否する
	for _, row := range m.rows {
		if row.SpaceID == r.SpaceID && row.Status == reservation.StatusConfirmed && row.Slot.Overlaps(r.Slot) {
			return reservation.ErrConflict
		}
	}
	r.ID = uuid.New().String()
	m.rows[r.ID] = copyReservation(r)
	return nil
}

func (m *memoryReservationRepo) GetByID(ctx context.Context, id string) (*reservation.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, reservation.ErrReservationNotFound
	}
	return copyReservation(row), nil
}

func (m *memoryReservationRepo) GetByOwnerID(ctx context.Context, ownerID string, limit, offset int) ([]*reservation.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*reservation.Reservation
	for _, row := range m.rows {
		if row.OwnerID == ownerID {
			out = append(out, copyReservation(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryReservationRepo) ListOccupying(ctx context.Context, spaceID string, slot reservation.TimeRange, now time.Time) ([]*reservation.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*reservation.Reservation
	for _, row := range m.rows {
		if row.SpaceID == spaceID && row.Slot.Overlaps(slot) && row.Occupies(now) {
			out = append(out, copyReservation(row))
		}
	}
	return out, nil
}

func (m *memoryReservationRepo) ListBySpaceAndRange(ctx context.Context, spaceID string, slot reservation.TimeRange) ([]*reservation.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*reservation.Reservation
	for _, row := range m.rows {
		if row.SpaceID == spaceID && row.Slot.Overlaps(slot) {
			out = append(out, copyReservation(row))
		}
	}
	return out, nil
}

func (m *memoryReservationRepo) UpdateStatus(ctx context.Context, tx transaction.Tx, r *reservation.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[r.ID]
	if !ok {
		return reservation.ErrReservationNotFound
	}
	if row.Version != r.Version {
		return reservation.ErrStaleState
	}
	updated := copyReservation(r)
	updated.Version++
	m.rows[r.ID] = updated
	r.Version++
	return nil
}

func (m *memoryReservationRepo) ListLeaseElapsed(ctx context.Context, now time.Time, limit int) ([]*reservation.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*reservation.Reservation
	for _, row := range m.rows {
		if !row.Status.IsOccupying() || row.Status == reservation.StatusConfirmed {
			continue
		}
		if row.IsLeaseElapsed(now) || row.Slot.End.Before(now) {
			out = append(out, copyReservation(row))
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memoryReservationRepo) ListEndingUnconfirmed(ctx context.Context, now time.Time, horizon time.Duration) ([]*reservation.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*reservation.Reservation
	deadline := now.Add(horizon)
	for _, row := range m.rows {
		if row.Status != reservation.StatusHeld && row.Status != reservation.StatusSuspended {
			continue
		}
		if row.Slot.End.After(now) && !row.Slot.End.After(deadline) {
			out = append(out, copyReservation(row))
		}
	}
	return out, nil
}

func (m *memoryReservationRepo) FindDuplicateHolds(ctx context.Context, spaceID string, slot reservation.TimeRange, ownerID string) ([]*reservation.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*reservation.Reservation
	for _, row := range m.rows {
		if row.SpaceID == spaceID && row.OwnerID == ownerID && row.Status == reservation.StatusHeld && row.Slot.Equal(slot) {
			out = append(out, copyReservation(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memoryPaymentRepo struct {
	mu   sync.Mutex
	rows map[string]*payment.Payment
}

func newMemoryPaymentRepo() *memoryPaymentRepo {
	return &memoryPaymentRepo{rows: make(map[string]*payment.Payment)}
}

func copyPayment(p *payment.Payment) *payment.Payment {
	c := *p
	return &c
}

func (m *memoryPaymentRepo) Create(ctx context.Context, tx transaction.Tx, p *payment.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.New().String()
	m.rows[p.ID] = copyPayment(p)
	return nil
}

func (m *memoryPaymentRepo) GetByID(ctx context.Context, id string) (*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, payment.ErrPaymentNotFound
	}
	return copyPayment(row), nil
}

func (m *memoryPaymentRepo) GetByReservationID(ctx context.Context, reservationID string) (*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.ReservationID == reservationID {
			return copyPayment(row), nil
		}
	}
	return nil, payment.ErrPaymentNotFound
}

func (m *memoryPaymentRepo) UpdateStatus(ctx context.Context, tx transaction.Tx, p *payment.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[p.ID]; !ok {
		return payment.ErrPaymentNotFound
	}
	m.rows[p.ID] = copyPayment(p)
	return nil
}

func (m *memoryPaymentRepo) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*payment.Payment
	for _, row := range m.rows {
		if row.Status == payment.StatusPending && row.CreatedAt.Before(cutoff) {
			out = append(out, copyPayment(row))
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

type memorySpaceRepo struct {
	mu   sync.Mutex
	rows map[string]*space.Space
}

func newMemorySpaceRepo(spaces ...*space.Space) *memorySpaceRepo {
	m := &memorySpaceRepo{rows: make(map[string]*space.Space)}
	for _, s := range spaces {
		m.rows[s.ID] = s
	}
	return m
}

func (m *memorySpaceRepo) GetByID(ctx context.Context, id string) (*space.Space, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, space.ErrSpaceNotFound
	}
	c := *row
	return &c, nil
}

func (m *memorySpaceRepo) List(ctx context.Context, limit, offset int) ([]*space.Space, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*space.Space
	for _, row := range m.rows {
		c := *row
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// memoryLockManager はプロセス内ミューテックスによる lock.Manager 実装
type memoryLockManager struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemoryLockManager() *memoryLockManager {
	return &memoryLockManager{held: make(map[string]bool)}
}

type memoryLock struct {
	manager *memoryLockManager
	key     string
}

func (l *memoryLock) Release(ctx context.Context) error {
	l.manager.mu.Lock()
	defer l.manager.mu.Unlock()
	if !l.manager.held[l.key] {
		return lock.ErrNotOwned
	}
	delete(l.manager.held, l.key)
	return nil
}

func (l *memoryLock) Extend(ctx context.Context, ttl time.Duration) error {
	return nil
}

func (m *memoryLockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (lock.Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] {
		return nil, lock.ErrNotAcquired
	}
	m.held[key] = true
	return &memoryLock{manager: m, key: key}, nil
}

func (m *memoryLockManager) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (lock.Lock, error) {
	for i := 0; i <= maxRetries; i++ {
		l, err := m.Acquire(ctx, key, ttl)
		if err == nil {
			return l, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, lock.ErrNotAcquired
}

// capturePublisher は配信されたイベントを記録する
type capturePublisher struct {
	mu     sync.Mutex
	events []notifier.Event
}

func (p *capturePublisher) Publish(ev notifier.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *capturePublisher) Events() []notifier.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notifier.Event, len(p.events))
	copy(out, p.events)
	return out
}

func (p *capturePublisher) EventsOfType(t notifier.EventType) []notifier.Event {
	var out []notifier.Event
	for _, ev := range p.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

var errCacheMiss = errors.New("cache miss")

// memorySlotCache は SlotSnapshotCache のインメモリ実装
type memorySlotCache struct {
	mu   sync.Mutex
	data map[string][]byte
	hits int
}

func newMemorySlotCache() *memorySlotCache {
	return &memorySlotCache{data: make(map[string][]byte)}
}

func (c *memorySlotCache) key(spaceID, date string) string { return spaceID + ":" + date }

func (c *memorySlotCache) GetSnapshot(ctx context.Context, spaceID, date string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.data[c.key(spaceID, date)]
	if !ok {
		return nil, errCacheMiss
	}
	c.hits++
	return data, nil
}

func (c *memorySlotCache) SetSnapshot(ctx context.Context, spaceID, date string, data []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[c.key(spaceID, date)] = data
	return nil
}

func (c *memorySlotCache) Invalidate(ctx context.Context, spaceID string, dates ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range dates {
		delete(c.data, c.key(spaceID, d))
	}
	return nil
}

// fakeGateway は決済要求の発行を記録する
type fakeGateway struct {
	mu       sync.Mutex
	requests []string
}

func (g *fakeGateway) RequestPayment(ctx context.Context, reservationID string, amount int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, reservationID)
	return "pay_" + uuid.New().String(), nil
}
