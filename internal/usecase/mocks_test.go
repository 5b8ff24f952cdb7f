package usecase_test

import (
	"context"
	"time"

	"github.com/Ayflow350/Ice-empire/internal/domain/model"
	"github.com/Ayflow350/Ice-empire/internal/infra/paystack"
	repo "github.com/Ayflow350/Ice-empire/internal/repository"
	"github.com/Ayflow350/Ice-empire/internal/usecase"

	"github.com/stretchr/testify/mock"
)

// =====================
// TxManager / TxRepos mocks
// =====================

// WithinTx の中で渡す repos を固定して unit テストを回す
type TxManagerMock struct {
	mock.Mock
	Repos repo.TxRepos
}

func (m *TxManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	m.Called(ctx)
	return fn(m.Repos)
}

type TxReposMock struct {
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	products   repo.ProductRepository
	auditLogs  repo.AuditLogRepository
}

func (r *TxReposMock) Orders() repo.OrderRepository         { return r.orders }
func (r *TxReposMock) OrderItems() repo.OrderItemRepository { return r.orderItems }
func (r *TxReposMock) Products() repo.ProductRepository     { return r.products }
func (r *TxReposMock) AuditLogs() repo.AuditLogRepository   { return r.auditLogs }

// =====================
// Repository mocks
// =====================

type OrderRepoMock struct{ mock.Mock }

func (m *OrderRepoMock) Create(ctx context.Context, order model.Order) (model.Order, error) {
	args := m.Called(ctx, order)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) FindByReference(ctx context.Context, reference string) (model.Order, error) {
	args := m.Called(ctx, reference)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) MarkSuccess(ctx context.Context, reference string, transactionID string, paidAt time.Time) (model.Order, bool, error) {
	args := m.Called(ctx, reference, transactionID, paidAt)
	o, _ := args.Get(0).(model.Order)
	return o, args.Bool(1), args.Error(2)
}

func (m *OrderRepoMock) MarkFailed(ctx context.Context, reference string) (model.Order, bool, error) {
	args := m.Called(ctx, reference)
	o, _ := args.Get(0).(model.Order)
	return o, args.Bool(1), args.Error(2)
}

func (m *OrderRepoMock) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	args := m.Called(ctx, f)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

type OrderItemRepoMock struct{ mock.Mock }

func (m *OrderItemRepoMock) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	args := m.Called(ctx, orderID)
	items, _ := args.Get(0).([]model.OrderItem)
	return items, args.Error(1)
}

type ProductRepoMock struct{ mock.Mock }

func (m *ProductRepoMock) FindByID(ctx context.Context, id string) (model.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

func (m *ProductRepoMock) FindVariant(ctx context.Context, variantID string) (model.ProductVariant, error) {
	args := m.Called(ctx, variantID)
	v, _ := args.Get(0).(model.ProductVariant)
	return v, args.Error(1)
}

func (m *ProductRepoMock) DecreaseVariantStock(ctx context.Context, variantID string, qty int64) (int64, error) {
	args := m.Called(ctx, variantID, qty)
	return args.Get(0).(int64), args.Error(1)
}

type AuditRepoMock struct{ mock.Mock }

func (m *AuditRepoMock) Create(ctx context.Context, log model.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *AuditRepoMock) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	args := m.Called(ctx, filter)
	logs, _ := args.Get(0).([]model.AuditLog)
	return logs, args.Error(1)
}

// =====================
// Gateway / Notifier mocks
// =====================

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) Initialize(ctx context.Context, in paystack.InitializeRequest) (paystack.InitializeData, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(paystack.InitializeData)
	return out, args.Error(1)
}

func (m *GatewayMock) Verify(ctx context.Context, reference string) (paystack.VerifyData, error) {
	args := m.Called(ctx, reference)
	out, _ := args.Get(0).(paystack.VerifyData)
	return out, args.Error(1)
}

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) LowStock(ctx context.Context, alert model.LowStockAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func (m *NotifierMock) OrderPaid(ctx context.Context, ev model.OrderPaidEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

var (
	_ repo.OrderRepository     = (*OrderRepoMock)(nil)
	_ repo.OrderItemRepository = (*OrderItemRepoMock)(nil)
	_ repo.ProductRepository   = (*ProductRepoMock)(nil)
	_ repo.AuditLogRepository  = (*AuditRepoMock)(nil)
	_ usecase.PaymentGateway   = (*GatewayMock)(nil)
	_ usecase.Notifier         = (*NotifierMock)(nil)
)
