package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-coworking-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/space"
	"github.com/sanosuguru/go-coworking-reservation/internal/notifier"
)

func TestEventsHandler_Stream(t *testing.T) {
	e := NewTestEcho()
	hub := notifier.NewHub(time.Minute, nil)

	mockSpaces := new(MockSpaceService)
	mockSpaces.On("GetByID", mock.Anything, "space-123").Return(testSpace(), nil)

	handler := NewEventsHandler(hub, mockSpaces)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/spaces/space-123/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("space-123")

	done := make(chan error, 1)
	go func() {
		done <- handler.Stream(c)
	}()

	// 購読者が登録されるのを待ってからイベントを配信する
	require.Eventually(t, func() bool {
		return hub.SubscriberCount() == 1
	}, time.Second, 10*time.Millisecond)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	slot := reservation.TimeRange{Start: now.Add(time.Hour), End: now.Add(3 * time.Hour)}
	hub.Publish(notifier.NewSlotOccupied("space-123", slot, now))

	// 配信がハンドラー側で消費されるのを待ってから切断する
	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("stream did not terminate on context cancel")
	}

	// Content-Type とイベント本文を確認
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	body := rec.Body.String()
	assert.Contains(t, body, "event: slot_occupied")
	assert.Contains(t, body, `"type":"slot_occupied"`)
	assert.Contains(t, body, `"space_id":"space-123"`)

	// ハンドラー終了後は購読解除されている
	assert.Equal(t, 0, hub.SubscriberCount())
}

func TestEventsHandler_Stream_SpaceNotFound(t *testing.T) {
	e := NewTestEcho()
	hub := notifier.NewHub(time.Minute, nil)

	mockSpaces := new(MockSpaceService)
	mockSpaces.On("GetByID", mock.Anything, "unknown").Return(nil, space.ErrSpaceNotFound)

	handler := NewEventsHandler(hub, mockSpaces)

	req := httptest.NewRequest(http.MethodGet, "/spaces/unknown/events", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("unknown")

	err := handler.Stream(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Code)
	assert.Equal(t, 0, hub.SubscriberCount())
}
