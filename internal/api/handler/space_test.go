package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-coworking-reservation/internal/application"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/space"
)

// MockSpaceService はSpaceServiceInterfaceのモック
type MockSpaceService struct {
	mock.Mock
}

func (m *MockSpaceService) GetByID(ctx context.Context, id string) (*space.Space, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*space.Space), args.Error(1)
}

func (m *MockSpaceService) List(ctx context.Context, limit, offset int) ([]*space.Space, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*space.Space), args.Error(1)
}

// MockAvailabilityService はAvailabilityServiceInterfaceのモック
type MockAvailabilityService struct {
	mock.Mock
}

func (m *MockAvailabilityService) CheckAvailability(ctx context.Context, spaceID string, start, end time.Time) (bool, error) {
	args := m.Called(ctx, spaceID, start, end)
	return args.Bool(0), args.Error(1)
}

func (m *MockAvailabilityService) GetSlotStatuses(ctx context.Context, spaceID string, date time.Time) ([]application.SlotStatus, error) {
	args := m.Called(ctx, spaceID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]application.SlotStatus), args.Error(1)
}

func testSpace() *space.Space {
	return &space.Space{
		ID: "space-123", Name: "会議室A", HourlyRate: 1500,
		OpenHour: 9, CloseHour: 18, Active: true,
	}
}

func TestSpaceHandler_List(t *testing.T) {
	e := NewTestEcho()

	mockSpaces := new(MockSpaceService)
	mockSpaces.On("List", mock.Anything, 20, 0).
		Return([]*space.Space{testSpace()}, nil)

	handler := NewSpaceHandler(mockSpaces, new(MockAvailabilityService))

	req := httptest.NewRequest(http.MethodGet, "/spaces", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := handler.List(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp []SpaceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "会議室A", resp[0].Name)
}

func TestSpaceHandler_GetByID(t *testing.T) {
	e := NewTestEcho()

	t.Run("スペースを取得できる", func(t *testing.T) {
		mockSpaces := new(MockSpaceService)
		mockSpaces.On("GetByID", mock.Anything, "space-123").Return(testSpace(), nil)

		handler := NewSpaceHandler(mockSpaces, new(MockAvailabilityService))

		req := httptest.NewRequest(http.MethodGet, "/spaces/space-123", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("space-123")

		err := handler.GetByID(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("存在しないスペースは404", func(t *testing.T) {
		mockSpaces := new(MockSpaceService)
		mockSpaces.On("GetByID", mock.Anything, "unknown").Return(nil, space.ErrSpaceNotFound)

		handler := NewSpaceHandler(mockSpaces, new(MockAvailabilityService))

		req := httptest.NewRequest(http.MethodGet, "/spaces/unknown", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("unknown")

		err := handler.GetByID(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusNotFound, httpErr.Code)
	})
}

func TestSpaceHandler_CheckAvailability(t *testing.T) {
	e := NewTestEcho()

	t.Run("空きを確認できる", func(t *testing.T) {
		mockAvailability := new(MockAvailabilityService)
		mockAvailability.On("CheckAvailability", mock.Anything, "space-123", mock.Anything, mock.Anything).
			Return(true, nil)

		handler := NewSpaceHandler(new(MockSpaceService), mockAvailability)

		req := httptest.NewRequest(http.MethodGet,
			"/spaces/space-123/availability?start=2026-03-10T10:00:00Z&end=2026-03-10T12:00:00Z", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("space-123")

		err := handler.CheckAvailability(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp AvailabilityResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Free)
	})

	t.Run("時刻形式が不正な場合は400", func(t *testing.T) {
		handler := NewSpaceHandler(new(MockSpaceService), new(MockAvailabilityService))

		req := httptest.NewRequest(http.MethodGet, "/spaces/space-123/availability?start=today&end=tomorrow", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("space-123")

		err := handler.CheckAvailability(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	})
}

func TestSpaceHandler_GetSlotStatuses(t *testing.T) {
	e := NewTestEcho()

	t.Run("スロット状態スナップショットを取得できる", func(t *testing.T) {
		day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
		slots := []application.SlotStatus{
			{Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour), State: application.SlotAvailable},
			{Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour), State: application.SlotHeld, LeaseRemainingSec: 600},
		}
		mockAvailability := new(MockAvailabilityService)
		mockAvailability.On("GetSlotStatuses", mock.Anything, "space-123", day).Return(slots, nil)

		handler := NewSpaceHandler(new(MockSpaceService), mockAvailability)

		req := httptest.NewRequest(http.MethodGet, "/spaces/space-123/slots?date=2026-03-10", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("space-123")

		err := handler.GetSlotStatuses(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp []application.SlotStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp, 2)
		assert.Equal(t, application.SlotHeld, resp[1].State)
		assert.Equal(t, int64(600), resp[1].LeaseRemainingSec)
	})

	t.Run("日付形式が不正な場合は400", func(t *testing.T) {
		handler := NewSpaceHandler(new(MockSpaceService), new(MockAvailabilityService))

		req := httptest.NewRequest(http.MethodGet, "/spaces/space-123/slots?date=tomorrow", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("space-123")

		err := handler.GetSlotStatuses(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	})
}
