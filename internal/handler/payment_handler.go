package handler

import (
	"errors"
	"net/http"

	"github.com/Ayflow350/Ice-empire/internal/domain/model"
	"github.com/Ayflow350/Ice-empire/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type PaymentHandler struct {
	uc *usecase.PaymentUsecase
}

func NewPaymentHandler(uc *usecase.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

type PaymentItemRequest struct {
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id"`
	Name      string          `json:"name"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	Image     string          `json:"image"`
}

type PaymentInitializeRequest struct {
	Email           string                `json:"email"`
	Amount          decimal.Decimal       `json:"amount"`
	Currency        string                `json:"currency"`
	Items           []PaymentItemRequest  `json:"items"`
	ShippingAddress model.ShippingAddress `json:"shipping_address"`
	UserID          *int64                `json:"user_id"`
	Reference       string                `json:"reference"`
}

// ゲートウェイ失敗時はreferenceを返し、同じ注文で再試行させる
type PaymentInitializeErrorResponse struct {
	Error     string `json:"error"`
	Reference string `json:"reference,omitempty"`
}

type PaymentFailedResponse struct {
	Status string       `json:"status"`
	Error  string       `json:"error"`
	Order  *model.Order `json:"order,omitempty"`
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/payment")
	g.POST("/initialize", h.initialize)
	g.GET("/verify", h.verify)
}

func (h *PaymentHandler) initialize(c echo.Context) error {
	var req PaymentInitializeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	items := make([]usecase.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, usecase.ItemInput{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Name:      it.Name,
			Color:     it.Color,
			Size:      it.Size,
			UnitPrice: it.Price,
			Quantity:  it.Quantity,
			ImageURL:  it.Image,
		})
	}

	out, err := h.uc.Initialize(c.Request().Context(), usecase.InitializeInput{
		Email:           req.Email,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		UserID:          req.UserID,
		Reference:       req.Reference,
	})
	if err != nil {
		he, ok := usecase.AsHTTPError(err)
		pe, hasRef := usecase.AsPaymentError(err)
		if ok && hasRef && pe.Reference != "" {
			return c.JSON(he.Status, PaymentInitializeErrorResponse{Error: he.Message, Reference: pe.Reference})
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) verify(c echo.Context) error {
	out, err := h.uc.Verify(c.Request().Context(), c.QueryParam("reference"))
	if err != nil {
		//照合NGはクライアントが失敗画面を出せる形で返す
		if errors.Is(err, usecase.ErrVerificationMismatch) {
			he, _ := usecase.AsHTTPError(err)
			res := PaymentFailedResponse{Status: "failed", Error: he.Message}
			if pe, ok := usecase.AsPaymentError(err); ok {
				res.Order = pe.Order
			}
			return c.JSON(he.Status, res)
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
