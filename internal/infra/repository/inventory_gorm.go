package repository

import (
	"context"
	"errors"

	"github.com/Ayflow350/Ice-empire/internal/domain/model"
	repo "github.com/Ayflow350/Ice-empire/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 支払い確定分の在庫を減らす。足りなければ0で止める（売り越しはログで拾う）
func (r *ProductGormRepository) DecreaseVariantStock(ctx context.Context, variantID string, qty int64) (int64, error) {
	var remaining int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var v model.ProductVariant
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", variantID).
			First(&v).Error
		if isNotFound(err) {
			return repo.ErrNotFound
		}
		if err != nil {
			return err
		}

		remaining = v.Stock - qty
		if remaining < 0 {
			remaining = 0
		}

		return tx.Model(&model.ProductVariant{}).
			Where("id = ?", variantID).
			Update("stock", remaining).Error
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
