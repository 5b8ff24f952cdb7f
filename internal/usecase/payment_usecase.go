package usecase

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/Ayflow350/Ice-empire/internal/domain/model"
	repo "github.com/Ayflow350/Ice-empire/internal/repository"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/currency"
)

// 相乗りしたverify全体の上限
const verifyTimeout = 30 * time.Second

type PaymentConfig struct {
	Currency        string
	ShippingFee     decimal.Decimal
	RecomputeAmount bool
}

type PaymentUsecase struct {
	tx      repo.TransactionManager
	orders  repo.OrderRepository
	gateway *GatewayAdapter
	settle  *Settlement
	cfg     PaymentConfig
	log     logrus.FieldLogger

	//同じreferenceへの同時verifyは1回のゲートウェイ呼び出しにまとめる
	verifyGroup singleflight.Group
}

func NewPaymentUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	gateway *GatewayAdapter,
	settle *Settlement,
	cfg PaymentConfig,
	log logrus.FieldLogger,
) *PaymentUsecase {
	return &PaymentUsecase{
		tx:      tx,
		orders:  orders,
		gateway: gateway,
		settle:  settle,
		cfg:     cfg,
		log:     log,
	}
}

type ItemInput struct {
	ProductID string
	VariantID string
	Name      string
	Color     string
	Size      string
	UnitPrice decimal.Decimal
	Quantity  int64
	ImageURL  string
}

type InitializeInput struct {
	Email           string
	Amount          decimal.Decimal
	Currency        string
	Items           []ItemInput
	ShippingAddress model.ShippingAddress
	UserID          *int64

	//既存のPending注文の初期化をやり直すとき
	Reference string
}

type InitializeOutput struct {
	Reference   string `json:"reference"`
	RedirectURL string `json:"redirect_url"`
}

type VerifyOutput struct {
	Status string      `json:"status"`
	Order  model.Order `json:"order"`
}

func (u *PaymentUsecase) Initialize(ctx context.Context, in InitializeInput) (InitializeOutput, error) {
	if ref := strings.TrimSpace(in.Reference); ref != "" {
		return u.reinitialize(ctx, ref)
	}

	order, err := u.buildOrder(in)
	if err != nil {
		return InitializeOutput{}, err
	}

	//金額の再計算と保存は同じトランザクション
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if u.cfg.RecomputeAmount {
			if err := u.priceFromCatalog(ctx, r, &order); err != nil {
				return err
			}
		}

		created, err := r.Orders().Create(ctx, order)
		if errors.Is(err, repo.ErrInvalidOrder) {
			return newKindError(ErrValidation, http.StatusBadRequest, "email, amount and items are required")
		}
		if err != nil {
			return err
		}
		order = created
		return nil
	})
	if err != nil {
		if _, ok := AsHTTPError(err); ok {
			return InitializeOutput{}, err
		}
		u.log.WithError(err).Error("create order")
		return InitializeOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.startGateway(ctx, order)
}

func (u *PaymentUsecase) reinitialize(ctx context.Context, reference string) (InitializeOutput, error) {
	o, err := u.orders.FindByReference(ctx, reference)
	if errors.Is(err, repo.ErrNotFound) {
		return InitializeOutput{}, newKindError(ErrOrderNotFound, http.StatusNotFound, "order not found")
	}
	if err != nil {
		return InitializeOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if o.Status != model.OrderStatusPending {
		return InitializeOutput{}, newKindError(ErrValidation, http.StatusBadRequest, "order is not pending")
	}
	return u.startGateway(ctx, o)
}

func (u *PaymentUsecase) startGateway(ctx context.Context, o model.Order) (InitializeOutput, error) {
	res, err := u.gateway.Initialize(ctx, o)
	if err != nil {
		//注文はPendingのまま（同じreferenceで再試行できる）
		u.log.WithError(err).WithField("reference", o.Reference).Warn("gateway initialize failed")
		return InitializeOutput{}, withReference(err, o.Reference)
	}

	u.log.WithFields(logrus.Fields{"reference": o.Reference, "amount": o.Amount.StringFixed(2)}).Info("payment initialized")
	return InitializeOutput{Reference: o.Reference, RedirectURL: res.RedirectURL}, nil
}

func (u *PaymentUsecase) buildOrder(in InitializeInput) (model.Order, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || !in.Amount.IsPositive() || len(in.Items) == 0 {
		return model.Order{}, newKindError(ErrValidation, http.StatusBadRequest, "email, amount and items are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return model.Order{}, newKindError(ErrValidation, http.StatusBadRequest, "invalid email")
	}

	cur := u.cfg.Currency
	if c := strings.TrimSpace(in.Currency); c != "" {
		unit, err := currency.ParseISO(c)
		if err != nil {
			return model.Order{}, newKindError(ErrValidation, http.StatusBadRequest, "invalid currency")
		}
		if unit.String() != u.cfg.Currency {
			return model.Order{}, newKindError(ErrValidation, http.StatusBadRequest, "unsupported currency")
		}
	}

	addr := in.ShippingAddress
	if strings.TrimSpace(addr.FullName) == "" || strings.TrimSpace(addr.Address) == "" || strings.TrimSpace(addr.Phone) == "" {
		return model.Order{}, newKindError(ErrValidation, http.StatusBadRequest, "shipping full_name, address and phone are required")
	}

	items := make([]model.OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		if strings.TrimSpace(it.ProductID) == "" || it.Quantity <= 0 || it.UnitPrice.IsNegative() {
			return model.Order{}, newKindError(ErrValidation, http.StatusBadRequest, "invalid item")
		}
		items = append(items, model.OrderItem{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Name:      it.Name,
			Color:     it.Color,
			Size:      it.Size,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			ImageURL:  it.ImageURL,
		})
	}

	return model.Order{
		Email:           email,
		UserID:          in.UserID,
		ShippingAddress: addr,
		Amount:          in.Amount.Round(2),
		Currency:        cur,
		Status:          model.OrderStatusPending,
		Items:           items,
	}, nil
}

// カタログ価格で明細を組み直し、送料込み合計がクライアント金額と一致するか確認する
func (u *PaymentUsecase) priceFromCatalog(ctx context.Context, r repo.TxRepos, o *model.Order) error {
	for i := range o.Items {
		it := &o.Items[i]

		p, err := r.Products().FindByID(ctx, it.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			return newKindError(ErrValidation, http.StatusBadRequest, "unknown product "+it.ProductID)
		}
		if err != nil {
			return err
		}

		v, ok := lo.Find(p.Variants, func(v model.ProductVariant) bool { return v.ID == it.VariantID })
		if !ok {
			return newKindError(ErrValidation, http.StatusBadRequest, "unknown variant "+it.VariantID)
		}

		it.UnitPrice = p.Price
		it.Name = p.Name
		it.Color = v.ColorName
		if it.ImageURL == "" {
			it.ImageURL = v.ImageURL
		}
	}

	subtotal := lo.Reduce(o.Items, func(acc decimal.Decimal, it model.OrderItem, _ int) decimal.Decimal {
		return acc.Add(it.LineTotal())
	}, decimal.Zero)
	total := subtotal.Add(u.cfg.ShippingFee)

	if !total.Equal(o.Amount) {
		u.log.WithFields(logrus.Fields{
			"submitted": o.Amount.StringFixed(2),
			"computed":  total.StringFixed(2),
		}).Warn("amount mismatch")
		return newKindError(ErrValidation, http.StatusBadRequest, "amount does not match cart total")
	}
	return nil
}

func (u *PaymentUsecase) Verify(ctx context.Context, reference string) (VerifyOutput, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return VerifyOutput{}, newKindError(ErrValidation, http.StatusBadRequest, "reference is required")
	}

	//相乗りした呼び出しがあるので、最初の呼び出し元の切断では止めない
	v, err, _ := u.verifyGroup.Do(reference, func() (interface{}, error) {
		vctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), verifyTimeout)
		defer cancel()
		return u.verify(vctx, reference)
	})
	if err != nil {
		return VerifyOutput{}, err
	}
	return v.(VerifyOutput), nil
}

func (u *PaymentUsecase) verify(ctx context.Context, reference string) (VerifyOutput, error) {
	o, err := u.orders.FindByReference(ctx, reference)
	if errors.Is(err, repo.ErrNotFound) {
		return VerifyOutput{}, newKindError(ErrOrderNotFound, http.StatusNotFound, "order not found")
	}
	if err != nil {
		return VerifyOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	switch o.Status {
	case model.OrderStatusSuccess:
		return VerifyOutput{Status: "success", Order: o}, nil
	case model.OrderStatusFailed:
		return VerifyOutput{}, withOrder(newKindError(ErrVerificationMismatch, http.StatusBadRequest, "payment failed"), o)
	}

	res, err := u.gateway.Verify(ctx, reference)
	if err != nil {
		//到達できない場合はPendingのまま（webhookで確定する可能性がある）
		u.log.WithError(err).WithField("reference", reference).Warn("gateway verify failed")
		return VerifyOutput{}, err
	}

	if res.Success && paymentCovers(o, res.PaidAmount, res.Currency) {
		paid, _, err := u.settle.MarkPaid(ctx, reference, res.TransactionID, model.AuditActorVerify)
		if errors.Is(err, repo.ErrInvalidTransition) {
			failed := u.reload(ctx, o, model.OrderStatusFailed)
			return VerifyOutput{}, withOrder(newKindError(ErrVerificationMismatch, http.StatusBadRequest, "payment failed"), failed)
		}
		if err != nil {
			u.log.WithError(err).WithField("reference", reference).Error("mark success")
			return VerifyOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return VerifyOutput{Status: "success", Order: paid}, nil
	}

	reason := "paid " + res.PaidAmount.StringFixed(2) + " " + res.Currency + " for " + o.Amount.StringFixed(2) + " " + o.Currency
	if !res.Success {
		reason = "gateway reported not successful"
	}
	if _, _, err := u.settle.MarkFailed(ctx, reference, model.AuditActorVerify, reason); err != nil {
		u.log.WithError(err).WithField("reference", reference).Error("mark failed")
		return VerifyOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//webhookが先にSuccessにしていた場合はそちらが正
	latest := u.reload(ctx, o, model.OrderStatusFailed)
	if latest.Status == model.OrderStatusSuccess {
		return VerifyOutput{Status: "success", Order: latest}, nil
	}
	return VerifyOutput{}, withOrder(newKindError(ErrVerificationMismatch, http.StatusBadRequest, "payment verification failed"), latest)
}

// 読み直せなければ手元の注文に想定ステータスを載せて返す
func (u *PaymentUsecase) reload(ctx context.Context, o model.Order, fallback model.OrderStatus) model.Order {
	latest, err := u.orders.FindByReference(ctx, o.Reference)
	if err != nil {
		o.Status = fallback
		return o
	}
	return latest
}
