package usecase

import (
	"context"

	"github.com/Ayflow350/Ice-empire/internal/domain/model"
	"github.com/Ayflow350/Ice-empire/internal/infra/paystack"
)

// 決済ゲートウェイ（paystack.Client が満たす）
type PaymentGateway interface {
	Initialize(ctx context.Context, in paystack.InitializeRequest) (paystack.InitializeData, error)
	Verify(ctx context.Context, reference string) (paystack.VerifyData, error)
}

// 通知は投げっぱなし。エラーを返しても決済結果には影響させない
type Notifier interface {
	LowStock(ctx context.Context, alert model.LowStockAlert) error
	OrderPaid(ctx context.Context, ev model.OrderPaidEvent) error
}
