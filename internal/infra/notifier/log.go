package notifier

import (
	"context"

	"github.com/Ayflow350/Ice-empire/internal/domain/model"

	"github.com/sirupsen/logrus"
)

// ブローカーが無い環境用（ログに出すだけ）
type LogNotifier struct {
	log logrus.FieldLogger
}

func NewLogNotifier(log logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) LowStock(_ context.Context, alert model.LowStockAlert) error {
	n.log.WithFields(logrus.Fields{
		"product":   alert.ProductName,
		"variant":   alert.VariantName,
		"remaining": alert.Remaining,
	}).Warn("low stock")
	return nil
}

func (n *LogNotifier) OrderPaid(_ context.Context, ev model.OrderPaidEvent) error {
	n.log.WithFields(logrus.Fields{
		"reference": ev.Reference,
		"amount":    ev.Amount.StringFixed(2),
		"currency":  ev.Currency,
		"source":    ev.Source,
	}).Info("order paid")
	return nil
}
