package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-coworking-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/space"
	"github.com/sanosuguru/go-coworking-reservation/internal/notifier"
	"github.com/sanosuguru/go-coworking-reservation/internal/pkg/clock"
)

var resTestNow = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

type reservationTestEnv struct {
	holds           *HoldService
	service         *ReservationService
	reservationRepo *memoryReservationRepo
	paymentRepo     *memoryPaymentRepo
	publisher       *capturePublisher
	clk             *clock.FakeClock
}

func setupReservationServiceTest(t *testing.T) *reservationTestEnv {
	t.Helper()
	sp := &space.Space{
		ID: "space-1", Name: "会議室A", HourlyRate: 1500,
		OpenHour: 0, CloseHour: 24, Active: true,
	}
	env := &reservationTestEnv{
		reservationRepo: newMemoryReservationRepo(),
		paymentRepo:     newMemoryPaymentRepo(),
		publisher:       &capturePublisher{},
		clk:             clock.NewFake(resTestNow),
	}
	env.holds = NewHoldService(
		memoryTxManager{},
		env.reservationRepo,
		env.paymentRepo,
		newMemorySpaceRepo(sp),
		newMemoryLockManager(),
		&fakeGateway{},
		env.publisher,
		nil,
		env.clk,
		testBookingConfig(),
		nil,
	)
	env.service = NewReservationService(
		memoryTxManager{},
		env.reservationRepo,
		env.paymentRepo,
		env.publisher,
		nil,
		env.clk,
		testBookingConfig(),
		nil,
	)
	return env
}

func (env *reservationTestEnv) createHold(t *testing.T, ownerID string, startOffset, endOffset time.Duration) *reservation.Reservation {
	t.Helper()
	res, err := env.holds.CreateHold(context.Background(), CreateHoldInput{
		SpaceID: "space-1", OwnerID: ownerID,
		Start: resTestNow.Add(startOffset), End: resTestNow.Add(endOffset),
	})
	require.NoError(t, err)
	return res
}

func TestReservationService_ResolvePayment_Succeeded(t *testing.T) {
	env := setupReservationServiceTest(t)
	ctx := context.Background()
	res := env.createHold(t, "user-a", 2*time.Hour, 4*time.Hour)

	confirmed, err := env.service.ResolvePayment(ctx, res.ID, PaymentOutcomeSucceeded)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusConfirmed, confirmed.Status)
	assert.NotNil(t, confirmed.ConfirmedAt)

	// 決済も連動して成功に更新される
	pay, err := env.paymentRepo.GetByReservationID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSucceeded, pay.Status)
}

func TestReservationService_ResolvePayment_Failed(t *testing.T) {
	env := setupReservationServiceTest(t)
	ctx := context.Background()
	res := env.createHold(t, "user-a", 2*time.Hour, 4*time.Hour)

	failed, err := env.service.ResolvePayment(ctx, res.ID, PaymentOutcomeFailed)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusPaymentFailed, failed.Status)

	pay, err := env.paymentRepo.GetByReservationID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusFailed, pay.Status)

	// 決済失敗後も掃除されるまでスロットは占有されたまま
	occupying, err := env.reservationRepo.ListOccupying(ctx, "space-1", failed.Slot, env.clk.Now())
	require.NoError(t, err)
	assert.Len(t, occupying, 1)
}

func TestReservationService_ResolvePayment_RetryAfterFailure(t *testing.T) {
	env := setupReservationServiceTest(t)
	ctx := context.Background()
	res := env.createHold(t, "user-a", 2*time.Hour, 4*time.Hour)

	_, err := env.service.ResolvePayment(ctx, res.ID, PaymentOutcomeFailed)
	require.NoError(t, err)

	// payment_failed からの決済リトライ成功で確定できる
	confirmed, err := env.service.ResolvePayment(ctx, res.ID, PaymentOutcomeSucceeded)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusConfirmed, confirmed.Status)
}

func TestReservationService_ResolvePayment_InvalidOutcome(t *testing.T) {
	env := setupReservationServiceTest(t)
	res := env.createHold(t, "user-a", 2*time.Hour, 4*time.Hour)

	_, err := env.service.ResolvePayment(context.Background(), res.ID, PaymentOutcome("unknown"))
	assert.ErrorIs(t, err, ErrInvalidOutcome)
}

func TestReservationService_ResolvePayment_Terminal(t *testing.T) {
	env := setupReservationServiceTest(t)
	ctx := context.Background()
	res := env.createHold(t, "user-a", 2*time.Hour, 4*time.Hour)

	// 失効済みの予約には決済シグナルを適用できない
	env.clk.Advance(reservation.HoldTTL + time.Minute)
	n, err := env.service.ExpireElapsed(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = env.service.ResolvePayment(ctx, res.ID, PaymentOutcomeSucceeded)
	assert.ErrorIs(t, err, reservation.ErrIllegalTransition)
}

func TestReservationService_ResolvePayment_NotFound(t *testing.T) {
	env := setupReservationServiceTest(t)
	_, err := env.service.ResolvePayment(context.Background(), "no-such-id", PaymentOutcomeSucceeded)
	assert.ErrorIs(t, err, reservation.ErrReservationNotFound)
}

func TestReservationService_Suspend(t *testing.T) {
	env := setupReservationServiceTest(t)
	ctx := context.Background()
	res := env.createHold(t, "user-a", 2*time.Hour, 4*time.Hour)

	suspended, err := env.service.Suspend(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusSuspended, suspended.Status)

	// 中断中もリースが有効な間はスロットを占有する
	occupying, err := env.reservationRepo.ListOccupying(ctx, "space-1", suspended.Slot, env.clk.Now())
	require.NoError(t, err)
	assert.Len(t, occupying, 1)

	// 中断からの再開（決済成功）で確定できる
	confirmed, err := env.service.ResolvePayment(ctx, res.ID, PaymentOutcomeSucceeded)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusConfirmed, confirmed.Status)
}

func TestReservationService_Suspend_NotHeld(t *testing.T) {
	env := setupReservationServiceTest(t)
	ctx := context.Background()
	res := env.createHold(t, "user-a", 2*time.Hour, 4*time.Hour)

	_, err := env.service.ResolvePayment(ctx, res.ID, PaymentOutcomeSucceeded)
	require.NoError(t, err)

	_, err = env.service.Suspend(ctx, res.ID)
	assert.ErrorIs(t, err, reservation.ErrIllegalTransition)
}

func TestReservationService_CancelDuplicates(t *testing.T) {
	env := setupReservationServiceTest(t)
	ctx := context.Background()

	// 重複する仮押さえをリポジトリへ直接作成する（通常経路では競合が防ぐ状況の再現）
	var ids []string
	for i := 0; i < 3; i++ {
		slot, err := reservation.NewTimeRange(resTestNow.Add(2*time.Hour), resTestNow.Add(4*time.Hour))
		require.NoError(t, err)
		r := reservation.NewHold("space-1", "user-a", slot, resTestNow, reservation.HoldTTL)
		require.NoError(t, env.reservationRepo.Create(ctx, memoryTx{}, r))
		ids = append(ids, r.ID)
	}

	cancelled, err := env.service.CancelDuplicates(ctx, CancelDuplicatesInput{
		SpaceID: "space-1", OwnerID: "user-a",
		Start: resTestNow.Add(2 * time.Hour), End: resTestNow.Add(4 * time.Hour),
		KeepID: ids[0],
	})
	require.NoError(t, err)
	assert.Equal(t, 2, cancelled)

	// 残した1件は held のまま、他はキャンセルされる
	kept, err := env.reservationRepo.GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusHeld, kept.Status)
	for _, id := range ids[1:] {
		r, err := env.reservationRepo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, reservation.StatusCancelled, r.Status)
	}
}

func TestReservationService_CancelDuplicates_ConfirmedUntouched(t *testing.T) {
	env := setupReservationServiceTest(t)
	ctx := context.Background()
	res := env.createHold(t, "user-a", 2*time.Hour, 4*time.Hour)

	_, err := env.service.ResolvePayment(ctx, res.ID, PaymentOutcomeSucceeded)
	require.NoError(t, err)

	// 確定済みの予約は重複整理の対象外
	cancelled, err := env.service.CancelDuplicates(ctx, CancelDuplicatesInput{
		SpaceID: "space-1", OwnerID: "user-a",
		Start: resTestNow.Add(2 * time.Hour), End: resTestNow.Add(4 * time.Hour),
		KeepID: "other-id",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, cancelled)

	after, err := env.reservationRepo.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusConfirmed, after.Status)
}

func TestReservationService_ExpireElapsed(t *testing.T) {
	env := setupReservationServiceTest(t)
	ctx := context.Background()
	res := env.createHold(t, "user-a", 2*time.Hour, 4*time.Hour)

	// リース期間中は何も失効しない
	n, err := env.service.ExpireElapsed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	env.clk.Advance(reservation.HoldTTL + time.Minute)

	n, err = env.service.ExpireElapsed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	expired, err := env.reservationRepo.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusExpired, expired.Status)

	// 保留決済も連動して失敗になる
	pay, err := env.paymentRepo.GetByReservationID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusFailed, pay.Status)

	// slot_freed イベントが配信される
	freed := env.publisher.EventsOfType(notifier.EventSlotFreed)
	require.Len(t, freed, 1)
	assert.Equal(t, "space-1", freed[0].SpaceID)
}

// TestReservationService_ExpireElapsed_Idempotent は掃除の再実行が安全であることを確認する
func TestReservationService_ExpireElapsed_Idempotent(t *testing.T) {
	env := setupReservationServiceTest(t)
	ctx := context.Background()
	env.createHold(t, "user-a", 2*time.Hour, 4*time.Hour)
	env.clk.Advance(reservation.HoldTTL + time.Minute)

	n, err := env.service.ExpireElapsed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// 2回目の実行では対象が無い
	n, err = env.service.ExpireElapsed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestReservationService_ExpireElapsed_ConfirmedKept(t *testing.T) {
	env := setupReservationServiceTest(t)
	ctx := context.Background()
	res := env.createHold(t, "user-a", 2*time.Hour, 4*time.Hour)

	_, err := env.service.ResolvePayment(ctx, res.ID, PaymentOutcomeSucceeded)
	require.NoError(t, err)

	// 確定済みの予約はリース期限が過ぎても失効しない
	env.clk.Advance(reservation.HoldTTL + time.Minute)
	n, err := env.service.ExpireElapsed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	after, err := env.reservationRepo.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusConfirmed, after.Status)
}

func TestReservationService_FailStalePayments(t *testing.T) {
	env := setupReservationServiceTest(t)
	ctx := context.Background()
	res := env.createHold(t, "user-a", 20*time.Hour, 22*time.Hour)

	// 保留のまま HoldTTL を超えて滞留した決済が対象になる
	env.clk.Advance(reservation.HoldTTL + time.Minute)
	n, err := env.service.FailStalePayments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	after, err := env.reservationRepo.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusPaymentFailed, after.Status)

	pay, err := env.paymentRepo.GetByReservationID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusFailed, pay.Status)
}

func TestReservationService_FailStalePayments_ConfirmedSkipped(t *testing.T) {
	env := setupReservationServiceTest(t)
	ctx := context.Background()
	res := env.createHold(t, "user-a", 20*time.Hour, 22*time.Hour)

	_, err := env.service.ResolvePayment(ctx, res.ID, PaymentOutcomeSucceeded)
	require.NoError(t, err)

	env.clk.Advance(reservation.HoldTTL + time.Minute)
	n, err := env.service.FailStalePayments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestReservationService_ListExpiringSoon(t *testing.T) {
	env := setupReservationServiceTest(t)
	ctx := context.Background()

	// 30分後に終了する未確定予約は警告対象（WarnHorizon = 1時間）
	near := env.createHold(t, "user-a", -time.Hour, 30*time.Minute)
	// 2時間半後に終了する予約は対象外
	env.createHold(t, "user-b", 90*time.Minute, 150*time.Minute)

	soon, err := env.service.ListExpiringSoon(ctx)
	require.NoError(t, err)
	require.Len(t, soon, 1)
	assert.Equal(t, near.ID, soon[0].ID)
}

func TestReservationService_GetOwnerReservations(t *testing.T) {
	env := setupReservationServiceTest(t)
	ctx := context.Background()
	env.createHold(t, "user-a", 2*time.Hour, 4*time.Hour)
	env.createHold(t, "user-a", 5*time.Hour, 6*time.Hour)
	env.createHold(t, "user-b", 7*time.Hour, 8*time.Hour)

	list, err := env.service.GetOwnerReservations(ctx, "user-a", 0, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
