package usecase

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Ayflow350/Ice-empire/internal/domain/model"
	"github.com/Ayflow350/Ice-empire/internal/infra/paystack"
	repo "github.com/Ayflow350/Ice-empire/internal/repository"

	"github.com/shopspring/decimal"
)

type GatewayAdapterConfig struct {
	SecretKey   string
	CallbackURL string // SITE_URL + /checkout
	Channels    []string
}

// ゲートウェイ呼び出しをドメインの言葉に変換する
type GatewayAdapter struct {
	client PaymentGateway
	orders repo.OrderRepository
	cfg    GatewayAdapterConfig
}

func NewGatewayAdapter(client PaymentGateway, orders repo.OrderRepository, cfg GatewayAdapterConfig) *GatewayAdapter {
	if len(cfg.Channels) == 0 {
		cfg.Channels = []string{"card"}
	}
	return &GatewayAdapter{client: client, orders: orders, cfg: cfg}
}

type GatewayInitResult struct {
	RedirectURL string
	Reference   string
}

type GatewayVerifyResult struct {
	Success       bool
	PaidAmount    decimal.Decimal
	Currency      string
	TransactionID string
	//ローカルですでにSuccess（ゲートウェイは呼んでいない）
	AlreadySettled bool
}

func (a *GatewayAdapter) Initialize(ctx context.Context, order model.Order) (GatewayInitResult, error) {
	metadata := map[string]interface{}{
		"items": order.Items,
	}
	if order.UserID != nil {
		metadata["user_id"] = *order.UserID
	}

	out, err := a.client.Initialize(ctx, paystack.InitializeRequest{
		Email:       order.Email,
		Amount:      model.ToMinor(order.Amount),
		Currency:    order.Currency,
		Reference:   order.Reference,
		CallbackURL: a.cfg.CallbackURL,
		Channels:    a.cfg.Channels,
		Metadata:    metadata,
	})
	if err != nil {
		return GatewayInitResult{}, gatewayError(err)
	}

	ref := out.Reference
	if ref == "" {
		ref = order.Reference
	}
	return GatewayInitResult{RedirectURL: out.AuthorizationURL, Reference: ref}, nil
}

func (a *GatewayAdapter) Verify(ctx context.Context, reference string) (GatewayVerifyResult, error) {
	//確定済みならゲートウェイに問い合わせない
	o, err := a.orders.FindByReference(ctx, reference)
	if err == nil && o.Status == model.OrderStatusSuccess {
		res := GatewayVerifyResult{
			Success:        true,
			PaidAmount:     o.Amount,
			Currency:       o.Currency,
			AlreadySettled: true,
		}
		if o.TransactionID != nil {
			res.TransactionID = *o.TransactionID
		}
		return res, nil
	}
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return GatewayVerifyResult{}, err
	}

	data, err := a.client.Verify(ctx, reference)
	if err != nil {
		return GatewayVerifyResult{}, gatewayError(err)
	}

	res := GatewayVerifyResult{
		Success:    data.Status == "success",
		PaidAmount: model.FromMinor(data.Amount),
		Currency:   data.Currency,
	}
	if data.ID != 0 {
		res.TransactionID = strconv.FormatInt(data.ID, 10)
	}
	return res, nil
}

func (a *GatewayAdapter) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	return paystack.VerifySignature(rawBody, signature, a.cfg.SecretKey)
}

// ゲートウェイ側のメッセージはそのまま返す。通信エラーは汎用文言
func gatewayError(err error) error {
	var ge *paystack.GatewayError
	if errors.As(err, &ge) {
		return &HTTPError{Status: http.StatusBadGateway, Message: ge.Message, Err: errors.Join(ErrGateway, err)}
	}
	return &HTTPError{Status: http.StatusBadGateway, Message: "payment gateway unavailable", Err: errors.Join(ErrGateway, err)}
}

// 支払い額が注文額以上かつ通貨一致
func paymentCovers(order model.Order, paid decimal.Decimal, currency string) bool {
	return paid.GreaterThanOrEqual(order.Amount) && currency == order.Currency
}

func nowUTC() time.Time { return time.Now().UTC() }
