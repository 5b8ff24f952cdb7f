package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/Ayflow350/Ice-empire/internal/domain/model"

	"github.com/sirupsen/logrus"
)

type Sender interface {
	LowStock(ctx context.Context, alert model.LowStockAlert) error
	OrderPaid(ctx context.Context, ev model.OrderPaidEvent) error
}

// 呼び出し側を待たせない送信。失敗はログに残して捨てる
type Async struct {
	next    Sender
	timeout time.Duration
	log     logrus.FieldLogger
	wg      sync.WaitGroup
}

func NewAsync(next Sender, timeout time.Duration, log logrus.FieldLogger) *Async {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Async{next: next, timeout: timeout, log: log}
}

func (a *Async) LowStock(_ context.Context, alert model.LowStockAlert) error {
	a.spawn("low_stock", func(ctx context.Context) error {
		return a.next.LowStock(ctx, alert)
	})
	return nil
}

func (a *Async) OrderPaid(_ context.Context, ev model.OrderPaidEvent) error {
	a.spawn("order_paid", func(ctx context.Context) error {
		return a.next.OrderPaid(ctx, ev)
	})
	return nil
}

func (a *Async) spawn(kind string, send func(ctx context.Context) error) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				a.log.WithField("kind", kind).Errorf("notifier panic: %v", r)
			}
		}()

		//リクエストのctxとは切り離す（レスポンス後も送る）
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		if err := send(ctx); err != nil {
			a.log.WithError(err).WithField("kind", kind).Warn("notification dropped")
		}
	}()
}

// 送信中のものを待つ（シャットダウン時）
func (a *Async) Wait() {
	a.wg.Wait()
}
