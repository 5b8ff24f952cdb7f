package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Ayflow350/Ice-empire/internal/config"
	"github.com/Ayflow350/Ice-empire/internal/domain/model"
	"github.com/Ayflow350/Ice-empire/internal/infra/db"
	infraRepo "github.com/Ayflow350/Ice-empire/internal/infra/repository"
	repo "github.com/Ayflow350/Ice-empire/internal/repository"
	"github.com/Ayflow350/Ice-empire/internal/usecase"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"
)

type orderRepositorySuite struct {
	suite.Suite

	gdb       *gorm.DB
	repo      *infraRepo.OrderGormRepository
	container testcontainers.Container
}

func TestOrderRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	suite.Run(t, new(orderRepositorySuite))
}

func startPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	c, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("ice"),
		postgres.WithUsername("ice"),
		postgres.WithPassword("ice"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, "", err
	}

	connStr, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return c, "", err
	}
	return c, connStr, nil
}

// 全テストの前に1回
func (s *orderRepositorySuite) SetupSuite() {
	ctx := s.T().Context()

	c, connStr, err := startPostgres(ctx)
	s.container = c
	s.Require().NoError(err)

	s.gdb, err = db.Connect(config.DB{Driver: "postgres", DatabaseURL: connStr})
	s.Require().NoError(err)
	s.Require().NoError(db.Migrate(s.gdb))

	s.repo = infraRepo.NewOrderGormRepository(s.gdb, "ICE")
}

func (s *orderRepositorySuite) TearDownSuite() {
	ctx := s.T().Context()

	if s.gdb != nil {
		if sqlDB, err := s.gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if s.container != nil {
		s.NoError(s.container.Terminate(ctx))
	}
}

func fakeProduct(stock int64) model.Product {
	id := gofakeit.UUID()
	return model.Product{
		ID:       id,
		Name:     gofakeit.ProductName(),
		Price:    decimal.NewFromFloat(gofakeit.Price(10, 300)).Round(2),
		IsActive: true,
		Variants: []model.ProductVariant{
			{ID: gofakeit.UUID(), ProductID: id, ColorName: gofakeit.Color(), Stock: stock},
		},
	}
}

func fakeOrder(p model.Product, qty int64) model.Order {
	return model.Order{
		Email: gofakeit.Email(),
		ShippingAddress: model.ShippingAddress{
			FullName: gofakeit.Name(),
			Address:  gofakeit.Street(),
			City:     gofakeit.City(),
			State:    gofakeit.State(),
			Phone:    gofakeit.Phone(),
		},
		Amount:   p.Price.Mul(decimal.NewFromInt(qty)),
		Currency: "USD",
		Items: []model.OrderItem{{
			ProductID: p.ID,
			VariantID: p.Variants[0].ID,
			Name:      p.Name,
			Color:     p.Variants[0].ColorName,
			Size:      "M",
			UnitPrice: p.Price,
			Quantity:  qty,
			ImageURL:  gofakeit.URL(),
		}},
	}
}

func (s *orderRepositorySuite) seedProduct(stock int64) model.Product {
	p := fakeProduct(stock)
	s.Require().NoError(s.gdb.Create(&p).Error)
	return p
}

func assertOrder(t *testing.T, expected, actual model.Order) {
	t.Helper()

	opts := cmp.Options{
		cmpopts.IgnoreFields(model.Order{}, "ID", "Reference", "Status", "CreatedAt", "UpdatedAt"),
		cmpopts.IgnoreFields(model.OrderItem{}, "ID", "OrderID", "CreatedAt"),
		cmp.Comparer(func(x, y decimal.Decimal) bool { return x.Equal(y) }),
	}
	assert.Empty(t, cmp.Diff(expected, actual, opts))
	assert.NotZero(t, actual.ID)
	assert.False(t, actual.CreatedAt.IsZero())
}

func (s *orderRepositorySuite) TestCreate() {
	p := s.seedProduct(10)

	tests := []struct {
		name    string
		order   func() model.Order
		wantErr error
	}{
		{
			name:  "valid order: ok",
			order: func() model.Order { return fakeOrder(p, 2) },
		},
		{
			name: "client status is ignored: ok",
			order: func() model.Order {
				o := fakeOrder(p, 1)
				o.Status = model.OrderStatusSuccess
				txID := "spoofed"
				o.TransactionID = &txID
				return o
			},
		},
		{
			name:    "missing email: invalid",
			order:   func() model.Order { o := fakeOrder(p, 1); o.Email = ""; return o },
			wantErr: repo.ErrInvalidOrder,
		},
		{
			name:    "no items: invalid",
			order:   func() model.Order { o := fakeOrder(p, 1); o.Items = nil; return o },
			wantErr: repo.ErrInvalidOrder,
		},
		{
			name:    "zero amount: invalid",
			order:   func() model.Order { o := fakeOrder(p, 1); o.Amount = decimal.Zero; return o },
			wantErr: repo.ErrInvalidOrder,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			t := s.T()
			ctx := t.Context()

			in := tt.order()
			created, err := s.repo.Create(ctx, in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Regexp(t, `^ICE-\d{13}-[0-9a-f]{8}$`, created.Reference)
			assert.Equal(t, model.OrderStatusPending, created.Status)
			assert.Nil(t, created.TransactionID)
			assert.Nil(t, created.PaidAt)

			found, err := s.repo.FindByReference(ctx, created.Reference)
			require.NoError(t, err)

			in.TransactionID = nil
			assertOrder(t, in, found)
		})
	}
}

func (s *orderRepositorySuite) TestCreate_ParallelNeverDuplicatesReference() {
	t := s.T()
	ctx := t.Context()
	p := s.seedProduct(100)

	const n = 20
	refs := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := s.repo.Create(ctx, fakeOrder(p, 1))
			if assert.NoError(t, err) {
				refs <- o.Reference
			}
		}()
	}
	wg.Wait()
	close(refs)

	seen := map[string]bool{}
	for r := range refs {
		assert.False(t, seen[r], "duplicate reference %s", r)
		seen[r] = true
	}
	assert.Len(t, seen, n)
}

func (s *orderRepositorySuite) TestCreate_RetriesOnReferenceCollision() {
	t := s.T()
	ctx := t.Context()
	p := s.seedProduct(10)

	existing, err := s.repo.Create(ctx, fakeOrder(p, 1))
	require.NoError(t, err)

	//1回目は既存と衝突させる
	calls := 0
	fresh := infraRepo.ReferenceMinter("ICE")
	r := s.repo.WithMinter(func() string {
		calls++
		if calls == 1 {
			return existing.Reference
		}
		return fresh()
	})

	created, err := r.Create(ctx, fakeOrder(p, 1))
	require.NoError(t, err)
	assert.NotEqual(t, existing.Reference, created.Reference)
	assert.Equal(t, 2, calls)

	//ずっと衝突するなら諦める
	stuck := s.repo.WithMinter(func() string { return existing.Reference })
	_, err = stuck.Create(ctx, fakeOrder(p, 1))
	assert.ErrorIs(t, err, repo.ErrDuplicateReference)
}

func (s *orderRepositorySuite) TestFindByReference_NotFound() {
	_, err := s.repo.FindByReference(s.T().Context(), "ICE-0-nothere")
	assert.ErrorIs(s.T(), err, repo.ErrNotFound)
}

func (s *orderRepositorySuite) TestMarkSuccess_Idempotent() {
	t := s.T()
	ctx := t.Context()
	p := s.seedProduct(10)

	o, err := s.repo.Create(ctx, fakeOrder(p, 1))
	require.NoError(t, err)

	firstAt := time.Now().UTC().Truncate(time.Microsecond)
	paid, transitioned, err := s.repo.MarkSuccess(ctx, o.Reference, "tx-1", firstAt)
	require.NoError(t, err)
	assert.True(t, transitioned)
	assert.Equal(t, model.OrderStatusSuccess, paid.Status)

	//2回目は別のtxIDでも上書きしない
	again, transitioned, err := s.repo.MarkSuccess(ctx, o.Reference, "tx-2", firstAt.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, transitioned)
	require.NotNil(t, again.TransactionID)
	assert.Equal(t, "tx-1", *again.TransactionID)
	require.NotNil(t, again.PaidAt)
	assert.WithinDuration(t, firstAt, *again.PaidAt, time.Millisecond)

	//Successからは失敗にできない
	after, transitioned, err := s.repo.MarkFailed(ctx, o.Reference)
	require.NoError(t, err)
	assert.False(t, transitioned)
	assert.Equal(t, model.OrderStatusSuccess, after.Status)
}

func (s *orderRepositorySuite) TestMarkSuccess_UnknownAndFailed() {
	t := s.T()
	ctx := t.Context()
	p := s.seedProduct(10)

	_, _, err := s.repo.MarkSuccess(ctx, "ICE-0-ghost", "tx", time.Now())
	assert.ErrorIs(t, err, repo.ErrInvalidTransition)
	assert.ErrorIs(t, err, repo.ErrNotFound)

	o, err := s.repo.Create(ctx, fakeOrder(p, 1))
	require.NoError(t, err)
	_, transitioned, err := s.repo.MarkFailed(ctx, o.Reference)
	require.NoError(t, err)
	assert.True(t, transitioned)

	failed, _, err := s.repo.MarkSuccess(ctx, o.Reference, "tx", time.Now())
	assert.ErrorIs(t, err, repo.ErrInvalidTransition)
	assert.Equal(t, model.OrderStatusFailed, failed.Status)
	assert.Nil(t, failed.PaidAt)
}

type countingNotifier struct {
	mu   sync.Mutex
	paid int
	low  int
}

func (n *countingNotifier) LowStock(context.Context, model.LowStockAlert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.low++
	return nil
}

func (n *countingNotifier) OrderPaid(context.Context, model.OrderPaidEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paid++
	return nil
}

// verifyとwebhookが同時に確定させても副作用は1回
func (s *orderRepositorySuite) TestSettlement_ConcurrentMarkPaid() {
	t := s.T()
	ctx := t.Context()
	p := s.seedProduct(6)

	o, err := s.repo.Create(ctx, fakeOrder(p, 2))
	require.NoError(t, err)

	log, _ := test.NewNullLogger()
	notify := &countingNotifier{}
	settle := usecase.NewSettlement(infraRepo.NewTxManagerGorm(s.gdb, "ICE"), notify, log, 5)

	sources := []string{model.AuditActorVerify, model.AuditActorWebhook, model.AuditActorVerify, model.AuditActorWebhook}
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for i, src := range sources {
		wg.Add(1)
		go func(txID, src string) {
			defer wg.Done()
			_, transitioned, err := settle.MarkPaid(ctx, o.Reference, txID, src)
			if !assert.NoError(t, err) {
				return
			}
			if transitioned {
				mu.Lock()
				winners = append(winners, txID)
				mu.Unlock()
			}
		}(string(rune('a'+i)), src)
	}
	wg.Wait()

	require.Len(t, winners, 1)

	final, err := s.repo.FindByReference(ctx, o.Reference)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusSuccess, final.Status)
	require.NotNil(t, final.TransactionID)
	assert.Equal(t, winners[0], *final.TransactionID)

	var v model.ProductVariant
	require.NoError(t, s.gdb.Where("id = ?", p.Variants[0].ID).First(&v).Error)
	assert.Equal(t, int64(4), v.Stock)

	var succeeded int64
	require.NoError(t, s.gdb.Model(&model.AuditLog{}).
		Where("resource_id = ? AND action = ?", o.Reference, model.AuditActionPaymentSucceeded).
		Count(&succeeded).Error)
	assert.Equal(t, int64(1), succeeded)

	assert.Equal(t, 1, notify.paid)
	assert.Equal(t, 1, notify.low)
}

func (s *orderRepositorySuite) TestDecreaseVariantStock_ClampsAtZero() {
	t := s.T()
	ctx := t.Context()
	p := s.seedProduct(1)
	products := infraRepo.NewProductGormRepository(s.gdb)

	remaining, err := products.DecreaseVariantStock(ctx, p.Variants[0].ID, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)

	_, err = products.DecreaseVariantStock(ctx, "missing", 1)
	assert.True(t, errors.Is(err, repo.ErrNotFound))
}

func (s *orderRepositorySuite) TestListAdmin_Filters() {
	t := s.T()
	ctx := t.Context()
	p := s.seedProduct(10)

	in := fakeOrder(p, 1)
	in.Email = "Filter." + gofakeit.Email()
	o, err := s.repo.Create(ctx, in)
	require.NoError(t, err)
	_, _, err = s.repo.MarkSuccess(ctx, o.Reference, "tx-list", time.Now())
	require.NoError(t, err)

	orders, total, err := s.repo.ListAdmin(ctx, repo.AdminOrderListFilter{
		Page:   1,
		Limit:  10,
		Status: string(model.OrderStatusSuccess),
		Email:  in.Email,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, orders, 1)
	assert.Equal(t, o.Reference, orders[0].Reference)
}
