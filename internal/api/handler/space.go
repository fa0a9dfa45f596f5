package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-coworking-reservation/internal/api"
	"github.com/sanosuguru/go-coworking-reservation/internal/application"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/space"
)

type SpaceHandler struct {
	spaces       SpaceServiceInterface
	availability AvailabilityServiceInterface
}

func NewSpaceHandler(spaces SpaceServiceInterface, availability AvailabilityServiceInterface) *SpaceHandler {
	return &SpaceHandler{spaces: spaces, availability: availability}
}

type SpaceResponse struct {
	ID         string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Name       string `json:"name" example:"会議室A"`
	HourlyRate int    `json:"hourly_rate" example:"2000"`
	OpenHour   int    `json:"open_hour" example:"9"`
	CloseHour  int    `json:"close_hour" example:"18"`
	Active     bool   `json:"active"`
}

func toSpaceResponse(s *space.Space) SpaceResponse {
	return SpaceResponse{
		ID: s.ID, Name: s.Name, HourlyRate: s.HourlyRate,
		OpenHour: s.OpenHour, CloseHour: s.CloseHour, Active: s.Active,
	}
}

// List godoc
// @Summary スペース一覧を取得
// @Tags spaces
// @Produce json
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} SpaceResponse
// @Router /spaces [get]
func (h *SpaceHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = 20
	}
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	spaces, err := h.spaces.List(c.Request().Context(), limit, offset)
	if err != nil {
		return api.DomainHTTPError(err)
	}
	resp := make([]SpaceResponse, len(spaces))
	for i, s := range spaces {
		resp[i] = toSpaceResponse(s)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetByID godoc
// @Summary スペースを取得
// @Tags spaces
// @Produce json
// @Param id path string true "スペースID"
// @Success 200 {object} SpaceResponse
// @Failure 404 {object} map[string]string
// @Router /spaces/{id} [get]
func (h *SpaceHandler) GetByID(c echo.Context) error {
	s, err := h.spaces.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return api.DomainHTTPError(err)
	}
	return c.JSON(http.StatusOK, toSpaceResponse(s))
}

type AvailabilityResponse struct {
	Free bool `json:"free"`
}

// CheckAvailability godoc
// @Summary 時間帯の空きを確認
// @Description 指定時間帯に占有中の予約が無いかを判定します
// @Tags spaces
// @Produce json
// @Param id path string true "スペースID"
// @Param start query string true "開始時刻（RFC3339）"
// @Param end query string true "終了時刻（RFC3339）"
// @Success 200 {object} AvailabilityResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /spaces/{id}/availability [get]
func (h *SpaceHandler) CheckAvailability(c echo.Context) error {
	start, err := time.Parse(time.RFC3339, c.QueryParam("start"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "開始時刻の形式が不正です")
	}
	end, err := time.Parse(time.RFC3339, c.QueryParam("end"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "終了時刻の形式が不正です")
	}
	free, err := h.availability.CheckAvailability(c.Request().Context(), c.Param("id"), start, end)
	if err != nil {
		return api.DomainHTTPError(err)
	}
	return c.JSON(http.StatusOK, AvailabilityResponse{Free: free})
}

// GetSlotStatuses godoc
// @Summary 指定日のスロット状態スナップショットを取得
// @Description held のスロットには残りリース秒数が含まれます（導出値）
// @Tags spaces
// @Produce json
// @Param id path string true "スペースID"
// @Param date query string true "日付（YYYY-MM-DD）"
// @Success 200 {array} application.SlotStatus
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /spaces/{id}/slots [get]
func (h *SpaceHandler) GetSlotStatuses(c echo.Context) error {
	date, err := time.Parse("2006-01-02", c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "日付の形式が不正です")
	}
	slots, err := h.availability.GetSlotStatuses(c.Request().Context(), c.Param("id"), date)
	if err != nil {
		return api.DomainHTTPError(err)
	}
	if slots == nil {
		slots = []application.SlotStatus{}
	}
	return c.JSON(http.StatusOK, slots)
}
