package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Ayflow350/Ice-empire/internal/domain/model"
	repo "github.com/Ayflow350/Ice-empire/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// 採番が衝突したときの再試行回数
const maxReferenceAttempts = 5

type OrderGormRepository struct {
	db   *gorm.DB
	mint func() string
}

func NewOrderGormRepository(db *gorm.DB, referencePrefix string) *OrderGormRepository {
	return &OrderGormRepository{db: db, mint: ReferenceMinter(referencePrefix)}
}

// 採番関数の差し替え（テスト用）
func (r *OrderGormRepository) WithMinter(mint func() string) *OrderGormRepository {
	return &OrderGormRepository{db: r.db, mint: mint}
}

// PREFIX-<unix millis>-<random hex>
func ReferenceMinter(prefix string) func() string {
	if prefix == "" {
		prefix = "ICE"
	}
	return func() string {
		suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixMilli(), suffix)
	}
}

func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) (model.Order, error) {
	if strings.TrimSpace(order.Email) == "" || !order.Amount.IsPositive() || len(order.Items) == 0 {
		return model.Order{}, repo.ErrInvalidOrder
	}

	order.ID = 0
	order.Status = model.OrderStatusPending
	order.TransactionID = nil
	order.PaidAt = nil

	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		order.Reference = r.mint()
		created := order
		items := make([]model.OrderItem, len(order.Items))
		copy(items, order.Items)

		//外側にTxがあればSAVEPOINTになる（一意制約違反でも外側は生きる）
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&created).Error; err != nil {
				return err
			}
			for i := range items {
				items[i].ID = 0
				items[i].OrderID = created.ID
			}
			return tx.Create(&items).Error
		})
		if isUniqueViolation(err) {
			continue
		}
		if err != nil {
			return model.Order{}, err
		}

		created.Items = items
		return created, nil
	}

	return model.Order{}, repo.ErrDuplicateReference
}

func (r *OrderGormRepository) FindByReference(ctx context.Context, reference string) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}

	if err := r.db.WithContext(ctx).Where("order_id = ?", o.ID).Order("id asc").Find(&o.Items).Error; err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) MarkSuccess(ctx context.Context, reference string, transactionID string, paidAt time.Time) (model.Order, bool, error) {
	updates := map[string]interface{}{
		"status":  model.OrderStatusSuccess,
		"paid_at": paidAt,
	}
	if transactionID != "" {
		updates["transaction_id"] = transactionID
	}

	//Pendingのときだけ更新（先に書いた方が勝つ）
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("reference = ? AND status = ?", reference, model.OrderStatusPending).
		Updates(updates)
	if res.Error != nil {
		return model.Order{}, false, res.Error
	}

	o, err := r.FindByReference(ctx, reference)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, false, fmt.Errorf("%w: %w", repo.ErrInvalidTransition, repo.ErrNotFound)
	}
	if err != nil {
		return model.Order{}, false, err
	}

	if res.RowsAffected == 1 {
		return o, true, nil
	}
	if o.Status == model.OrderStatusSuccess {
		return o, false, nil
	}
	return o, false, repo.ErrInvalidTransition
}

func (r *OrderGormRepository) MarkFailed(ctx context.Context, reference string) (model.Order, bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("reference = ? AND status = ?", reference, model.OrderStatusPending).
		Update("status", model.OrderStatusFailed)
	if res.Error != nil {
		return model.Order{}, false, res.Error
	}

	o, err := r.FindByReference(ctx, reference)
	if err != nil {
		return model.Order{}, false, err
	}
	return o, res.RowsAffected == 1, nil
}

func (r *OrderGormRepository) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	q := r.db.WithContext(ctx).Model(&model.Order{})

	//status 絞り込み
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	if f.Email != "" {
		q = q.Where("LOWER(email) = ?", strings.ToLower(f.Email))
	}

	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}

	//期間絞り込み
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var orders []model.Order
	offset := (f.Page - 1) * f.Limit
	if err := q.Order("id desc").Limit(f.Limit).Offset(offset).Find(&orders).Error; err != nil {
		return []model.Order{}, 0, err
	}

	return orders, total, nil
}

// postgres(23505) / mysql(TranslateError有効時)
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
