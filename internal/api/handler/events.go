package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-coworking-reservation/internal/api"
)

// EventsHandler はスロット状態変化のSSEストリームを提供する
type EventsHandler struct {
	hub    SubscriptionHub
	spaces SpaceServiceInterface
}

func NewEventsHandler(hub SubscriptionHub, spaces SpaceServiceInterface) *EventsHandler {
	return &EventsHandler{hub: hub, spaces: spaces}
}

// Stream godoc
// @Summary スロット状態変化のイベントストリームを購読
// @Description Server-Sent Events。接続後に発生したイベントのみ届くため、
// @Description 購読者はまず /spaces/{id}/slots で現在状態を取得すること
// @Tags spaces
// @Produce text/event-stream
// @Param id path string true "スペースID"
// @Success 200 {string} string "event stream"
// @Failure 404 {object} map[string]string
// @Router /spaces/{id}/events [get]
func (h *EventsHandler) Stream(c echo.Context) error {
	spaceID := c.Param("id")
	if _, err := h.spaces.GetByID(c.Request().Context(), spaceID); err != nil {
		return api.DomainHTTPError(err)
	}

	sub := h.hub.Subscribe(spaceID)
	defer h.hub.Unsubscribe(sub)

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				// Hub 側で切り離された（バッファ溢れ・停止）
				return nil
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
				// 切断された購読者への書き込み失敗。配信側は止めずにこの接続だけ閉じる
				return nil
			}
			resp.Flush()
		}
	}
}
