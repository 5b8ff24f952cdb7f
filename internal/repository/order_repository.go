package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Ayflow350/Ice-empire/internal/domain/model"
)

var (
	// Pending以外からの遷移、または存在しない注文への遷移
	ErrInvalidTransition = errors.New("invalid status transition")
	// reference の一意制約違反（採番し直しても解消しなかった）
	ErrDuplicateReference = errors.New("duplicate reference")
	// email/amount/items の欠け
	ErrInvalidOrder = errors.New("invalid order")
)

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status string
	Email  string
	UserID *int64
	From   *time.Time
	To     *time.Time
}

type OrderRepository interface {
	//referenceを採番してPendingで保存（明細も同じトランザクションで）
	Create(ctx context.Context, order model.Order) (model.Order, error)
	FindByReference(ctx context.Context, reference string) (model.Order, error)

	//Pending -> Success。すでにSuccessなら変更なし（transitioned=false）
	MarkSuccess(ctx context.Context, reference string, transactionID string, paidAt time.Time) (model.Order, bool, error)
	//Pending -> Failed。終端なら変更なし
	MarkFailed(ctx context.Context, reference string) (model.Order, bool, error)

	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
}
