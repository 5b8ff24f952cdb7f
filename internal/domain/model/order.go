package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "Pending"
	OrderStatusSuccess OrderStatus = "Success"
	OrderStatusFailed  OrderStatus = "Failed"
)

// Pending以外は終端（もう遷移しない）
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusSuccess || s == OrderStatusFailed
}

// 配送先（ordersテーブルに shipping_ プレフィックスで埋め込み）
type ShippingAddress struct {
	FullName   string `gorm:"type:varchar(255);not null" json:"full_name"`
	Address    string `gorm:"type:varchar(512);not null" json:"address"`
	City       string `gorm:"type:varchar(128)" json:"city"`
	State      string `gorm:"type:varchar(128)" json:"state"`
	PostalCode string `gorm:"type:varchar(32)" json:"postal_code"`
	Phone      string `gorm:"type:varchar(64);not null" json:"phone"`
}

type Order struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Reference       string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"reference"`
	UserID          *int64          `gorm:"index" json:"user_id,omitempty"`
	Email           string          `gorm:"type:varchar(255);not null;index" json:"email"`
	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency        string          `gorm:"type:varchar(3);not null" json:"currency"`
	Status          OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	TransactionID   *string         `gorm:"type:varchar(64)" json:"transaction_id,omitempty"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	CreatedAt       time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`

	//明細は order_items に別保存
	Items []OrderItem `gorm:"-" json:"items"`
}
