package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 注文時点の明細スナップショット（後から再計算しない）
type OrderItem struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   int64           `gorm:"not null;index" json:"order_id"`
	ProductID string          `gorm:"type:varchar(64);not null;index" json:"product_id"`
	VariantID string          `gorm:"type:varchar(64);not null" json:"variant_id"`
	Name      string          `gorm:"type:varchar(255);not null" json:"name"`
	Color     string          `gorm:"type:varchar(64)" json:"color"`
	Size      string          `gorm:"type:varchar(32)" json:"size"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	Quantity  int64           `gorm:"not null" json:"quantity"`
	ImageURL  string          `gorm:"type:text" json:"image_url"`
	CreatedAt time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (it OrderItem) LineTotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity))
}
