package repository

import (
	"context"

	"github.com/Ayflow350/Ice-empire/internal/domain/model"
)

type OrderItemRepository interface {
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
}
