package handler_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Ayflow350/Ice-empire/internal/domain/model"
	repo "github.com/Ayflow350/Ice-empire/internal/repository"
)

// handlerテスト用のインメモリ永続化（DBを立てずにusecaseを通す）
type memStore struct {
	mu       sync.Mutex
	seq      int64
	orders   map[string]model.Order
	products map[string]model.Product
	audits   []model.AuditLog
}

func newMemStore(products ...model.Product) *memStore {
	s := &memStore{
		orders:   map[string]model.Order{},
		products: map[string]model.Product{},
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

// TransactionManager（ロールバックは無し）
func (s *memStore) WithinTx(_ context.Context, fn func(r repo.TxRepos) error) error {
	return fn(s)
}

func (s *memStore) Orders() repo.OrderRepository         { return s }
func (s *memStore) OrderItems() repo.OrderItemRepository { return s }
func (s *memStore) Products() repo.ProductRepository     { return s }
func (s *memStore) AuditLogs() repo.AuditLogRepository   { return auditStore{s} }

func (s *memStore) Create(_ context.Context, o model.Order) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.Email == "" || !o.Amount.IsPositive() || len(o.Items) == 0 {
		return model.Order{}, repo.ErrInvalidOrder
	}
	s.seq++
	o.ID = s.seq
	o.Reference = fmt.Sprintf("ICE-%d-%08x", time.Now().UnixMilli(), s.seq)
	o.Status = model.OrderStatusPending
	o.TransactionID = nil
	o.PaidAt = nil
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}
	s.orders[o.Reference] = o
	return o, nil
}

func (s *memStore) FindByReference(_ context.Context, reference string) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[reference]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (s *memStore) MarkSuccess(_ context.Context, reference, transactionID string, paidAt time.Time) (model.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[reference]
	if !ok {
		return model.Order{}, false, fmt.Errorf("%w: %w", repo.ErrInvalidTransition, repo.ErrNotFound)
	}
	switch o.Status {
	case model.OrderStatusSuccess:
		return o, false, nil
	case model.OrderStatusFailed:
		return o, false, repo.ErrInvalidTransition
	}
	o.Status = model.OrderStatusSuccess
	o.PaidAt = &paidAt
	if transactionID != "" {
		o.TransactionID = &transactionID
	}
	s.orders[reference] = o
	return o, true, nil
}

func (s *memStore) MarkFailed(_ context.Context, reference string) (model.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[reference]
	if !ok {
		return model.Order{}, false, repo.ErrNotFound
	}
	if o.Status != model.OrderStatusPending {
		return o, false, nil
	}
	o.Status = model.OrderStatusFailed
	s.orders[reference] = o
	return o, true, nil
}

func (s *memStore) ListAdmin(_ context.Context, _ repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	return out, int64(len(out)), nil
}

func (s *memStore) ListByOrderID(_ context.Context, orderID int64) ([]model.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.orders {
		if o.ID == orderID {
			return o.Items, nil
		}
	}
	return []model.OrderItem{}, nil
}

func (s *memStore) FindByID(_ context.Context, id string) (model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (s *memStore) FindVariant(_ context.Context, variantID string) (model.ProductVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.products {
		for _, v := range p.Variants {
			if v.ID == variantID {
				return v, nil
			}
		}
	}
	return model.ProductVariant{}, repo.ErrNotFound
}

func (s *memStore) DecreaseVariantStock(_ context.Context, variantID string, qty int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range s.products {
		for i, v := range p.Variants {
			if v.ID != variantID {
				continue
			}
			v.Stock -= qty
			if v.Stock < 0 {
				v.Stock = 0
			}
			p.Variants[i] = v
			s.products[id] = p
			return v.Stock, nil
		}
	}
	return 0, repo.ErrNotFound
}

func (s *memStore) stock(variantID string) int64 {
	v, _ := s.FindVariant(context.Background(), variantID)
	return v.Stock
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) only() model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.orders {
		return o
	}
	return model.Order{}
}

// AuditLogRepository
func (s *memStore) List(_ context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []model.AuditLog{}
	for _, l := range s.audits {
		if f.ResourceID != nil && l.ResourceID != *f.ResourceID {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *memStore) createAudit(l model.AuditLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, l)
}

// AuditLogRepository.Create と OrderRepository.Create が衝突するので別型で包む
type auditStore struct{ *memStore }

func (a auditStore) Create(_ context.Context, l model.AuditLog) error {
	a.createAudit(l)
	return nil
}

var (
	_ repo.OrderRepository     = (*memStore)(nil)
	_ repo.ProductRepository   = (*memStore)(nil)
	_ repo.OrderItemRepository = (*memStore)(nil)
	_ repo.AuditLogRepository  = auditStore{}
)
