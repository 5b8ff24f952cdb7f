package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Ayflow350/Ice-empire/internal/domain/model"
	repo "github.com/Ayflow350/Ice-empire/internal/repository"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// verify と webhook の共通部分。
// 遷移に勝った呼び出しだけが在庫減算・監査ログ・通知を行う。
type Settlement struct {
	tx                repo.TransactionManager
	notifier          Notifier
	log               logrus.FieldLogger
	lowStockThreshold int64
	now               func() time.Time
}

func NewSettlement(tx repo.TransactionManager, notifier Notifier, log logrus.FieldLogger, lowStockThreshold int64) *Settlement {
	return &Settlement{
		tx:                tx,
		notifier:          notifier,
		log:               log,
		lowStockThreshold: lowStockThreshold,
		now:               nowUTC,
	}
}

// テスト用
func (s *Settlement) WithClock(now func() time.Time) *Settlement {
	cp := *s
	cp.now = now
	return &cp
}

// Pending -> Success。transitioned=false ならすでにSuccess
func (s *Settlement) MarkPaid(ctx context.Context, reference, transactionID, source string) (model.Order, bool, error) {
	var (
		out          model.Order
		transitioned bool
		alerts       []model.LowStockAlert
	)
	paidAt := s.now()

	err := s.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, ok, err := r.Orders().MarkSuccess(ctx, reference, transactionID, paidAt)
		if err != nil {
			return err
		}
		out, transitioned = o, ok
		if !ok {
			return nil
		}

		alerts, err = s.decreaseStock(ctx, r, o, source)
		if err != nil {
			return err
		}

		return r.AuditLogs().Create(ctx, transitionLog(source, model.AuditActionPaymentSucceeded, o, model.OrderStatusPending, paidAt))
	})
	if err != nil {
		return model.Order{}, false, err
	}

	if !transitioned {
		s.log.WithFields(logrus.Fields{"reference": reference, "source": source}).Debug("already settled")
		return out, false, nil
	}

	s.log.WithFields(logrus.Fields{"reference": reference, "source": source, "status": out.Status}).Info("payment confirmed")

	for _, a := range alerts {
		if err := s.notifier.LowStock(ctx, a); err != nil {
			s.log.WithError(err).WithField("variant", a.VariantID).Warn("low stock alert failed")
		}
	}
	ev := model.OrderPaidEvent{
		Reference: out.Reference,
		Email:     out.Email,
		Amount:    out.Amount,
		Currency:  out.Currency,
		PaidAt:    paidAt,
		Source:    source,
	}
	if out.PaidAt != nil {
		ev.PaidAt = *out.PaidAt
	}
	if err := s.notifier.OrderPaid(ctx, ev); err != nil {
		s.log.WithError(err).WithField("reference", reference).Warn("order paid notification failed")
	}

	return out, true, nil
}

// Pending -> Failed。終端なら何もしない
func (s *Settlement) MarkFailed(ctx context.Context, reference, source, reason string) (model.Order, bool, error) {
	var (
		out          model.Order
		transitioned bool
	)
	now := s.now()

	err := s.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, ok, err := r.Orders().MarkFailed(ctx, reference)
		if err != nil {
			return err
		}
		out, transitioned = o, ok
		if !ok {
			return nil
		}
		return r.AuditLogs().Create(ctx, transitionLog(source, model.AuditActionPaymentFailed, o, model.OrderStatusPending, now))
	})
	if err != nil {
		return model.Order{}, false, err
	}

	if transitioned {
		s.log.WithFields(logrus.Fields{"reference": reference, "source": source, "reason": reason}).Warn("payment marked failed")
	}
	return out, transitioned, nil
}

// 明細ごとにバリアント在庫を減らし、閾値以下になったものを返す
func (s *Settlement) decreaseStock(ctx context.Context, r repo.TxRepos, o model.Order, source string) ([]model.LowStockAlert, error) {
	//同じバリアントはまとめて1回で減らす
	perVariant := lo.GroupBy(o.Items, func(it model.OrderItem) string { return it.VariantID })
	variantIDs := lo.Uniq(lo.Map(o.Items, func(it model.OrderItem, _ int) string { return it.VariantID }))

	var alerts []model.LowStockAlert
	for _, variantID := range variantIDs {
		items := perVariant[variantID]
		qty := lo.SumBy(items, func(it model.OrderItem) int64 { return it.Quantity })

		remaining, err := r.Products().DecreaseVariantStock(ctx, variantID, qty)
		if errors.Is(err, repo.ErrNotFound) {
			//カタログから消えた商品は在庫管理の対象外
			s.log.WithFields(logrus.Fields{"reference": o.Reference, "variant": variantID}).Warn("variant not found; stock not decreased")
			continue
		}
		if err != nil {
			return nil, err
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			Actor:        source,
			Action:       model.AuditActionDecreaseStock,
			ResourceType: model.AuditResourceVariant,
			ResourceID:   variantID,
			AfterJSON:    mustJSON(map[string]interface{}{"stock": remaining, "reference": o.Reference}),
			CreatedAt:    s.now(),
		}); err != nil {
			return nil, err
		}

		if remaining <= s.lowStockThreshold {
			first := items[0]
			alerts = append(alerts, model.LowStockAlert{
				ProductID:   first.ProductID,
				ProductName: first.Name,
				VariantID:   variantID,
				VariantName: first.Color,
				Remaining:   remaining,
			})
		}
	}
	return alerts, nil
}

func transitionLog(source string, action model.AuditAction, o model.Order, before model.OrderStatus, at time.Time) model.AuditLog {
	after := map[string]interface{}{"status": o.Status}
	if o.TransactionID != nil {
		after["transaction_id"] = *o.TransactionID
	}
	if o.PaidAt != nil {
		after["paid_at"] = o.PaidAt.UTC().Format(time.RFC3339)
	}
	return model.AuditLog{
		Actor:        source,
		Action:       action,
		ResourceType: model.AuditResourceOrder,
		ResourceID:   o.Reference,
		BeforeJSON:   mustJSON(map[string]interface{}{"status": before}),
		AfterJSON:    mustJSON(after),
		CreatedAt:    at,
	}
}

func mustJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
