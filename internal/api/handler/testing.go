package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-coworking-reservation/internal/api"
)

// NewTestEcho はテスト用のEchoインスタンスを作成する
// 本番と同じバリデーターとエラーハンドラーを持つ
func NewTestEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	return e
}
