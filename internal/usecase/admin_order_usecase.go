package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Ayflow350/Ice-empire/internal/domain/model"
	repo "github.com/Ayflow350/Ice-empire/internal/repository"
)

type AdminOrderUsecase struct {
	tx        repo.TransactionManager
	orders    repo.OrderRepository
	auditRepo repo.AuditLogRepository
}

func NewAdminOrderUsecase(tx repo.TransactionManager, orders repo.OrderRepository, auditRepo repo.AuditLogRepository) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, orders: orders, auditRepo: auditRepo}
}

type AdminOrderListOutput struct {
	Items []model.Order `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

type AdminOrderDetailOutput struct {
	Order   model.Order      `json:"order"`
	History []model.AuditLog `json:"history"`
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) (AdminOrderListOutput, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		return AdminOrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return AdminOrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	switch model.OrderStatus(f.Status) {
	case "", model.OrderStatusPending, model.OrderStatusSuccess, model.OrderStatusFailed:
	default:
		return AdminOrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	out := AdminOrderListOutput{Page: f.Page, Limit: f.Limit}

	//一覧と明細を同じスナップショットで読む
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		for i := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, orders[i].ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			orders[i].Items = items
		}
		out.Items = orders
		out.Total = total
		return nil
	})
	if err != nil {
		return AdminOrderListOutput{}, err
	}
	if out.Items == nil {
		out.Items = []model.Order{}
	}
	return out, nil
}

// 注文詳細（ステータス遷移の履歴つき）
func (u *AdminOrderUsecase) Detail(ctx context.Context, reference string) (AdminOrderDetailOutput, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return AdminOrderDetailOutput{}, NewHTTPError(http.StatusBadRequest, "invalid reference")
	}

	o, err := u.orders.FindByReference(ctx, reference)
	if errors.Is(err, repo.ErrNotFound) {
		return AdminOrderDetailOutput{}, newKindError(ErrOrderNotFound, http.StatusNotFound, "not found")
	}
	if err != nil {
		return AdminOrderDetailOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	rt := model.AuditResourceOrder
	history, err := u.auditRepo.List(ctx, repo.AuditLogFilter{
		ResourceType: &rt,
		ResourceID:   &reference,
		Limit:        100,
	})
	if err != nil {
		return AdminOrderDetailOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if history == nil {
		history = []model.AuditLog{}
	}

	return AdminOrderDetailOutput{Order: o, History: history}, nil
}
