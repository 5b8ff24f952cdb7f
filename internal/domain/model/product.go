package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 商品（金額の再計算と在庫減算に使う範囲だけ持つ）
type Product struct {
	ID        string           `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name      string           `gorm:"type:varchar(255);not null" json:"name"`
	Price     decimal.Decimal  `gorm:"type:numeric(12,2);not null" json:"price"`
	Sizes     string           `gorm:"type:varchar(255)" json:"sizes"`
	IsActive  bool             `gorm:"not null;default:true" json:"is_active"`
	Variants  []ProductVariant `gorm:"foreignKey:ProductID" json:"variants"`
	CreatedAt time.Time        `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time        `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt   `gorm:"index" json:"-"`
}

// カラー単位の在庫
type ProductVariant struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	ProductID string    `gorm:"type:varchar(64);not null;index" json:"product_id"`
	ColorName string    `gorm:"type:varchar(64);not null" json:"color_name"`
	ColorHex  string    `gorm:"type:varchar(16)" json:"color_hex"`
	ImageURL  string    `gorm:"type:text" json:"image_url"`
	Stock     int64     `gorm:"not null;default:0" json:"stock"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (p Product) TotalStock() int64 {
	var total int64
	for _, v := range p.Variants {
		total += v.Stock
	}
	return total
}
