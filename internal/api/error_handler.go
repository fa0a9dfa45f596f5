package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-coworking-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-coworking-reservation/internal/domain/space"
	"github.com/sanosuguru/go-coworking-reservation/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// StatusForError はドメインエラーをHTTPステータスコードへ対応付ける
// Conflict は想定内の結果（別の時間帯を選び直してもらう）、StaleState は再読込して一度だけ再試行
func StatusForError(err error) int {
	switch {
	case errors.Is(err, reservation.ErrInvalidRange),
		errors.Is(err, reservation.ErrRangeTooShort),
		errors.Is(err, reservation.ErrRangeTooLong),
		errors.Is(err, reservation.ErrOwnerIDRequired),
		errors.Is(err, reservation.ErrSpaceIDRequired):
		return http.StatusBadRequest
	case errors.Is(err, reservation.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, reservation.ErrStaleState):
		return http.StatusConflict
	case errors.Is(err, reservation.ErrIllegalTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, reservation.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, reservation.ErrReservationNotFound),
		errors.Is(err, space.ErrSpaceNotFound),
		errors.Is(err, payment.ErrPaymentNotFound):
		return http.StatusNotFound
	case errors.Is(err, space.ErrSpaceInactive),
		errors.Is(err, space.ErrOutsideOperatingHours):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// DomainHTTPError はドメインエラーを echo.HTTPError へ変換する
func DomainHTTPError(err error) *echo.HTTPError {
	code := StatusForError(err)
	if code == http.StatusInternalServerError {
		return echo.NewHTTPError(code, "内部サーバーエラー").SetInternal(err)
	}
	return echo.NewHTTPError(code, err.Error())
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		code    = http.StatusInternalServerError
		message = "内部サーバーエラー"
	)

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	}

	// エラーログを出力（5xx エラーの場合）
	if code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	// JSONレスポンスを返す
	if err := c.JSON(code, ErrorResponse{
		Error: message,
		Code:  code,
	}); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
