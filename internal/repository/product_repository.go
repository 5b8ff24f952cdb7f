package repository

import (
	"context"
	"errors"

	"github.com/Ayflow350/Ice-empire/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 商品（価格と在庫）の参照・更新の約束。
type ProductRepository interface {
	FindByID(ctx context.Context, id string) (model.Product, error)
	FindVariant(ctx context.Context, variantID string) (model.ProductVariant, error)

	//在庫を減らして残数を返す（0未満にはしない）
	DecreaseVariantStock(ctx context.Context, variantID string, qty int64) (int64, error)
}
