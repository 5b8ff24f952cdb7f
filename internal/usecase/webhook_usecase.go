package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Ayflow350/Ice-empire/internal/domain/model"
	repo "github.com/Ayflow350/Ice-empire/internal/repository"

	"github.com/sirupsen/logrus"
)

const EventChargeSuccess = "charge.success"

// webhookの処理結果（レスポンスは常に200）
type WebhookResult string

const (
	WebhookProcessed WebhookResult = "processed"
	WebhookDuplicate WebhookResult = "duplicate"
	WebhookIgnored   WebhookResult = "ignored"
	WebhookRejected  WebhookResult = "rejected" // 金額/通貨不一致でFailedにした
)

type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID        int64  `json:"id"`
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		Status    string `json:"status"`
	} `json:"data"`
}

type WebhookUsecase struct {
	gateway *GatewayAdapter
	orders  repo.OrderRepository
	settle  *Settlement
	log     logrus.FieldLogger
}

func NewWebhookUsecase(gateway *GatewayAdapter, orders repo.OrderRepository, settle *Settlement, log logrus.FieldLogger) *WebhookUsecase {
	return &WebhookUsecase{gateway: gateway, orders: orders, settle: settle, log: log}
}

// 署名NGだけエラー（401）。それ以外は結果を返して200
func (u *WebhookUsecase) Handle(ctx context.Context, rawBody []byte, signature string) (WebhookResult, error) {
	if !u.gateway.VerifyWebhookSignature(rawBody, signature) {
		u.log.Warn("webhook signature mismatch")
		return WebhookRejected, newKindError(ErrSignature, http.StatusUnauthorized, "invalid signature")
	}

	var ev webhookEvent
	if err := json.Unmarshal(rawBody, &ev); err != nil {
		u.log.WithError(err).Warn("webhook body is not json")
		return WebhookIgnored, nil
	}

	log := u.log.WithFields(logrus.Fields{"event": ev.Event, "reference": ev.Data.Reference})

	if ev.Event != EventChargeSuccess {
		log.Debug("webhook event ignored")
		return WebhookIgnored, nil
	}
	if ev.Data.Reference == "" {
		log.Warn("webhook without reference")
		return WebhookIgnored, nil
	}

	o, err := u.orders.FindByReference(ctx, ev.Data.Reference)
	if errors.Is(err, repo.ErrNotFound) {
		log.Warn("webhook for unknown order")
		return WebhookIgnored, nil
	}
	if err != nil {
		log.WithError(err).Error("find order")
		return WebhookIgnored, nil
	}

	switch o.Status {
	case model.OrderStatusSuccess:
		return WebhookDuplicate, nil
	case model.OrderStatusFailed:
		log.Warn("charge.success for failed order")
		return WebhookIgnored, nil
	}

	paid := model.FromMinor(ev.Data.Amount)
	if !paymentCovers(o, paid, ev.Data.Currency) {
		reason := "paid " + paid.StringFixed(2) + " " + ev.Data.Currency + " for " + o.Amount.StringFixed(2) + " " + o.Currency
		if _, _, err := u.settle.MarkFailed(ctx, o.Reference, model.AuditActorWebhook, reason); err != nil {
			log.WithError(err).Error("mark failed")
		}
		return WebhookRejected, nil
	}

	var txID string
	if ev.Data.ID != 0 {
		txID = strconv.FormatInt(ev.Data.ID, 10)
	}

	_, transitioned, err := u.settle.MarkPaid(ctx, o.Reference, txID, model.AuditActorWebhook)
	if errors.Is(err, repo.ErrInvalidTransition) {
		log.Warn("order left pending before webhook")
		return WebhookIgnored, nil
	}
	if err != nil {
		log.WithError(err).Error("mark success")
		return WebhookIgnored, nil
	}
	if !transitioned {
		return WebhookDuplicate, nil
	}
	return WebhookProcessed, nil
}
