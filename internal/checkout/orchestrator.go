package checkout

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/Ayflow350/Ice-empire/internal/cart"
	"github.com/Ayflow350/Ice-empire/internal/client"
	"github.com/Ayflow350/Ice-empire/internal/domain/model"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Step string

const (
	StepShipping  Step = "SHIPPING"
	StepReview    Step = "REVIEW"
	StepVerifying Step = "VERIFYING"
	StepSuccess   Step = "SUCCESS"
	StepFailed    Step = "FAILED"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrMissingShipping = errors.New("all shipping fields are required")
	ErrWrongStep       = errors.New("action not allowed in this step")
	ErrInProgress      = errors.New("payment initialization in progress")
)

// PaymentAPIは*client.Clientが満たす
type PaymentAPI interface {
	Initialize(ctx context.Context, in client.InitializeRequest) (client.InitializeResponse, error)
	Verify(ctx context.Context, reference string) (client.VerifyResponse, error)
}

// Navigatorは画面遷移（Redirectはゲートウェイへの片道の遷移）
type Navigator interface {
	Redirect(url string) error
	Push(path string)
}

type Shipping struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Address  string `json:"address"`
	City     string `json:"city"`
	State    string `json:"state"`
	Phone    string `json:"phone"`
}

func (s Shipping) complete() bool {
	return !lo.ContainsBy([]string{s.FullName, s.Email, s.Address, s.City, s.State, s.Phone}, func(v string) bool {
		return strings.TrimSpace(v) == ""
	})
}

type Config struct {
	ShippingFee decimal.Decimal
	Currency    string
	CatalogPath string
	UserID      *int64
}

// Stateは表示用のスナップショット
type State struct {
	Step      Step
	Shipping  Shipping
	Reference string
	Order     *model.Order
	Err       error
}

// Orchestratorは1回のページ表示（1インスタンス）ごとのチェックアウト状態
type Orchestrator struct {
	mu sync.Mutex

	cart *cart.Store
	api  PaymentAPI
	nav  Navigator
	cfg  Config
	log  logrus.FieldLogger

	step       Step
	shipping   Shipping
	reference  string
	order      *model.Order
	//開始に失敗したPendingの注文。REVIEWでの再試行はこれを送り返す
	pendingRef string
	err        error
	processing bool

	//このインスタンスでverifyを試みたか
	verifyAttempted bool
}

func New(c *cart.Store, api PaymentAPI, nav Navigator, cfg Config, log logrus.FieldLogger) *Orchestrator {
	if cfg.CatalogPath == "" {
		cfg.CatalogPath = "/Collection"
	}
	return &Orchestrator{cart: c, api: api, nav: nav, cfg: cfg, log: log, step: StepShipping}
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return State{Step: o.step, Shipping: o.shipping, Reference: o.reference, Order: o.order, Err: o.err}
}

// Total = 小計 + 送料
func (o *Orchestrator) Total() decimal.Decimal {
	return o.cart.Subtotal().Add(o.cfg.ShippingFee)
}

// Loadは戻りURLを見てverifyするか判断する。何度呼ばれてもverifyは1回
func (o *Orchestrator) Load(ctx context.Context, returnURL string) Step {
	ref := referenceFrom(returnURL)

	o.mu.Lock()
	if ref == "" || o.verifyAttempted {
		step := o.step
		o.mu.Unlock()
		if ref == "" && o.cart.IsEmpty() && step != StepSuccess && step != StepVerifying {
			o.nav.Push(o.cfg.CatalogPath)
		}
		return step
	}
	o.verifyAttempted = true
	o.step = StepVerifying
	o.reference = ref
	o.err = nil
	o.mu.Unlock()

	return o.verify(ctx, ref)
}

func (o *Orchestrator) verify(ctx context.Context, ref string) Step {
	log := o.log.WithField("reference", ref)

	res, err := o.api.Verify(ctx, ref)
	if err == nil && res.Status != "success" {
		err = errors.Errorf("payment %s", lo.Ternary(res.Error != "", res.Error, res.Status))
	}
	if err != nil {
		//自動リトライはしない。カートは残す
		log.WithError(err).Warn("verification failed")
		return o.finish(StepFailed, nil, err)
	}

	if err := o.cart.Clear(ctx); err != nil {
		log.WithError(err).Warn("cart clear failed")
	}
	log.Info("payment verified")
	return o.finish(StepSuccess, &res.Order, nil)
}

func (o *Orchestrator) finish(step Step, order *model.Order, err error) Step {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.step = step
	o.order = order
	o.err = err
	return step
}

// SubmitShippingは全項目が埋まっていればREVIEWへ
func (o *Orchestrator) SubmitShipping(s Shipping) error {
	if o.cart.IsEmpty() {
		o.nav.Push(o.cfg.CatalogPath)
		return ErrEmptyCart
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.step != StepShipping && o.step != StepReview {
		return ErrWrongStep
	}
	o.shipping = s
	if !s.complete() {
		o.err = ErrMissingShipping
		return ErrMissingShipping
	}
	o.err = nil
	o.step = StepReview
	return nil
}

// EditShippingはREVIEWから住所入力に戻る
func (o *Orchestrator) EditShipping() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.step != StepReview || o.processing {
		return ErrWrongStep
	}
	//住所が変わるので保留中の注文は使わない
	o.pendingRef = ""
	o.step = StepShipping
	return nil
}

// InitiatePaymentは注文を作ってゲートウェイへリダイレクトする。失敗時はREVIEWのまま
func (o *Orchestrator) InitiatePayment(ctx context.Context) error {
	o.mu.Lock()
	if o.step != StepReview {
		o.mu.Unlock()
		return ErrWrongStep
	}
	if o.processing {
		o.mu.Unlock()
		return ErrInProgress
	}
	o.processing = true
	shipping := o.shipping
	pendingRef := o.pendingRef
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.processing = false
		o.mu.Unlock()
	}()

	lines := o.cart.Lines()
	if len(lines) == 0 {
		o.nav.Push(o.cfg.CatalogPath)
		return ErrEmptyCart
	}

	req := client.InitializeRequest{
		Email:    strings.TrimSpace(shipping.Email),
		Amount:   o.Total(),
		Currency: o.cfg.Currency,
		Items: lo.Map(lines, func(l cart.Line, _ int) client.Item {
			return client.Item{
				ProductID: l.ProductID,
				VariantID: l.VariantID,
				Name:      l.Name,
				Color:     l.Color,
				Size:      l.Size,
				Price:     l.Price,
				Quantity:  l.Quantity,
				Image:     l.Image,
			}
		}),
		ShippingAddress: model.ShippingAddress{
			FullName: shipping.FullName,
			Address:  shipping.Address,
			City:     shipping.City,
			State:    shipping.State,
			Phone:    shipping.Phone,
		},
		UserID:    o.cfg.UserID,
		Reference: pendingRef,
	}

	res, err := o.api.Initialize(ctx, req)
	if err != nil {
		o.log.WithError(err).WithField("reference", pendingRef).Warn("payment initialization failed")

		//referenceが返らない失敗（注文が確定済み等）は次回新しく採番する
		var apiErr *client.APIError
		o.mu.Lock()
		o.pendingRef = ""
		if errors.As(err, &apiErr) {
			o.pendingRef = apiErr.Reference
		}
		o.mu.Unlock()

		o.setErr(errors.Wrap(err, "could not initialize payment"))
		return o.State().Err
	}

	o.mu.Lock()
	o.reference = res.Reference
	o.pendingRef = ""
	o.err = nil
	o.mu.Unlock()

	if err := o.nav.Redirect(res.RedirectURL); err != nil {
		o.setErr(errors.Wrap(err, "redirect"))
		return o.State().Err
	}
	return nil
}

// RetryはFAILEDから住所入力へ戻す。次の決済では新しいreferenceが採番される
func (o *Orchestrator) Retry() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.step != StepFailed {
		return ErrWrongStep
	}
	o.step = StepShipping
	o.reference = ""
	o.pendingRef = ""
	o.order = nil
	o.err = nil
	return nil
}

func (o *Orchestrator) setErr(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

// ゲートウェイは reference と trxref の両方を付けて戻す
func referenceFrom(returnURL string) string {
	u, err := url.Parse(returnURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	if ref := strings.TrimSpace(q.Get("reference")); ref != "" {
		return ref
	}
	return strings.TrimSpace(q.Get("trxref"))
}
