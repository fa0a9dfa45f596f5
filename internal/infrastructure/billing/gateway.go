package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-coworking-reservation/internal/pkg/logger"
)

// LogGateway は決済プロバイダ連携のスタブ実装
// 実際のプロバイダ統合（カードトークン化・Webhook署名検証）は外部の責務であり、
// 本エンジンは決済要求の発行と結果シグナルの受信のみを扱う
type LogGateway struct{}

func NewLogGateway() *LogGateway {
	return &LogGateway{}
}

// RequestPayment は決済要求を発行し、参照IDを返す（fire-and-forget）
// 決済の結果は onPaymentResolved シグナルとして別途届く
func (g *LogGateway) RequestPayment(ctx context.Context, reservationID string, amount int) (string, error) {
	ref := fmt.Sprintf("pay_%s", uuid.New().String())
	logger.Info("決済要求を発行",
		zap.String("reservation_id", reservationID),
		zap.Int("amount", amount),
		zap.String("payment_ref", ref),
	)
	return ref, nil
}
