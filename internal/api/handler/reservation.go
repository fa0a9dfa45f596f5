package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-coworking-reservation/internal/api"
	"github.com/sanosuguru/go-coworking-reservation/internal/application"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/reservation"
)

type ReservationHandler struct {
	holds        HoldServiceInterface
	reservations ReservationServiceInterface
}

func NewReservationHandler(holds HoldServiceInterface, reservations ReservationServiceInterface) *ReservationHandler {
	return &ReservationHandler{holds: holds, reservations: reservations}
}

type CreateHoldRequest struct {
	SpaceID string    `json:"space_id" validate:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
	Start   time.Time `json:"start" validate:"required"`
	End     time.Time `json:"end" validate:"required"`
}

type ReservationResponse struct {
	ID                string     `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	SpaceID           string     `json:"space_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	OwnerID           string     `json:"owner_id" example:"user-123"`
	Start             time.Time  `json:"start"`
	End               time.Time  `json:"end"`
	Status            string     `json:"status" example:"held"`
	ExpiresAt         time.Time  `json:"expires_at"`
	LeaseRemainingSec int64      `json:"lease_remaining_sec"`
	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func toReservationResponse(r *reservation.Reservation, now time.Time) ReservationResponse {
	resp := ReservationResponse{
		ID: r.ID, SpaceID: r.SpaceID, OwnerID: r.OwnerID,
		Start: r.Slot.Start, End: r.Slot.End, Status: string(r.Status),
		ExpiresAt: r.ExpiresAt, ConfirmedAt: r.ConfirmedAt, CreatedAt: r.CreatedAt,
	}
	if r.Status == reservation.StatusHeld || r.Status == reservation.StatusSuspended {
		resp.LeaseRemainingSec = int64(r.RemainingLease(now).Seconds())
	}
	return resp
}

// CreateHold godoc
// @Summary 仮押さえを作成
// @Description 時間帯を仮押さえします（リース期間内に決済が必要）
// @Tags reservations
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param request body CreateHoldRequest true "仮押さえ情報"
// @Success 201 {object} ReservationResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 409 {object} map[string]string "時間帯が既に占有されている"
// @Router /holds [post]
func (h *ReservationHandler) CreateHold(c echo.Context) error {
	ownerID := c.Request().Header.Get("X-User-ID")
	if ownerID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	var req CreateHoldRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	r, err := h.holds.CreateHold(c.Request().Context(), application.CreateHoldInput{
		SpaceID: req.SpaceID, OwnerID: ownerID, Start: req.Start, End: req.End,
	})
	if err != nil {
		return api.DomainHTTPError(err)
	}
	return c.JSON(http.StatusCreated, toReservationResponse(r, time.Now().UTC()))
}

// GetByID godoc
// @Summary 予約を取得
// @Tags reservations
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} ReservationResponse
// @Failure 404 {object} map[string]string
// @Router /reservations/{id} [get]
func (h *ReservationHandler) GetByID(c echo.Context) error {
	r, err := h.reservations.GetReservation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return api.DomainHTTPError(err)
	}
	return c.JSON(http.StatusOK, toReservationResponse(r, time.Now().UTC()))
}

// GetOwnerReservations godoc
// @Summary ユーザーの予約一覧を取得
// @Tags reservations
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} ReservationResponse
// @Failure 401 {object} map[string]string
// @Router /reservations [get]
func (h *ReservationHandler) GetOwnerReservations(c echo.Context) error {
	ownerID := c.Request().Header.Get("X-User-ID")
	if ownerID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	reservations, err := h.reservations.GetOwnerReservations(c.Request().Context(), ownerID, limit, offset)
	if err != nil {
		return api.DomainHTTPError(err)
	}
	now := time.Now().UTC()
	resp := make([]ReservationResponse, len(reservations))
	for i, r := range reservations {
		resp[i] = toReservationResponse(r, now)
	}
	return c.JSON(http.StatusOK, resp)
}

type ResolvePaymentRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=succeeded failed" example:"succeeded"`
}

// Confirm godoc
// @Summary 決済結果シグナルを適用
// @Description succeeded なら予約を確定、failed なら payment_failed へ遷移します
// @Tags reservations
// @Accept json
// @Produce json
// @Param id path string true "予約ID"
// @Param request body ResolvePaymentRequest true "決済結果"
// @Success 200 {object} ReservationResponse
// @Failure 404 {object} map[string]string
// @Failure 422 {object} map[string]string "許可されていない状態遷移"
// @Router /reservations/{id}/confirm [post]
func (h *ReservationHandler) Confirm(c echo.Context) error {
	var req ResolvePaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	r, err := h.reservations.ResolvePayment(c.Request().Context(), c.Param("id"), application.PaymentOutcome(req.Outcome))
	if err != nil {
		return api.DomainHTTPError(err)
	}
	return c.JSON(http.StatusOK, toReservationResponse(r, time.Now().UTC()))
}

// Suspend godoc
// @Summary 決済中断を記録
// @Description 利用者が決済を中断したことを記録します（後から確定または失効します）
// @Tags reservations
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} ReservationResponse
// @Failure 404 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /reservations/{id}/suspend [post]
func (h *ReservationHandler) Suspend(c echo.Context) error {
	r, err := h.reservations.Suspend(c.Request().Context(), c.Param("id"))
	if err != nil {
		return api.DomainHTTPError(err)
	}
	return c.JSON(http.StatusOK, toReservationResponse(r, time.Now().UTC()))
}

type CancelDuplicatesRequest struct {
	SpaceID string    `json:"space_id" validate:"required"`
	OwnerID string    `json:"owner_id" validate:"required"`
	Start   time.Time `json:"start" validate:"required"`
	End     time.Time `json:"end" validate:"required"`
	KeepID  string    `json:"keep_id" validate:"required"`
}

type CancelDuplicatesResponse struct {
	Cancelled int `json:"cancelled"`
}

// CancelDuplicates godoc
// @Summary 重複した仮押さえを整理
// @Description リトライにより生まれた同一内容の仮押さえを keep_id の1件だけ残して整理します
// @Tags reservations
// @Accept json
// @Produce json
// @Param request body CancelDuplicatesRequest true "整理対象"
// @Success 200 {object} CancelDuplicatesResponse
// @Failure 400 {object} map[string]string
// @Router /reservations/duplicates/cancel [post]
func (h *ReservationHandler) CancelDuplicates(c echo.Context) error {
	var req CancelDuplicatesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	cancelled, err := h.reservations.CancelDuplicates(c.Request().Context(), application.CancelDuplicatesInput{
		SpaceID: req.SpaceID, OwnerID: req.OwnerID,
		Start: req.Start, End: req.End, KeepID: req.KeepID,
	})
	if err != nil {
		return api.DomainHTTPError(err)
	}
	return c.JSON(http.StatusOK, CancelDuplicatesResponse{Cancelled: cancelled})
}
