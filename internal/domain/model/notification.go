package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 在庫が閾値以下になったときの通知
type LowStockAlert struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	VariantID   string `json:"variant_id"`
	VariantName string `json:"variant_name"`
	Remaining   int64  `json:"remaining_stock"`
}

// 支払い確定の通知
type OrderPaidEvent struct {
	Reference string          `json:"reference"`
	Email     string          `json:"email"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	PaidAt    time.Time       `json:"paid_at"`
	Source    string          `json:"source"` // verify / webhook
}
