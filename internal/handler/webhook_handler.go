package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/Ayflow350/Ice-empire/internal/infra/paystack"
	"github.com/Ayflow350/Ice-empire/internal/usecase"

	"github.com/labstack/echo/v4"
)

// webhookのボディ上限
const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	uc *usecase.WebhookUsecase
}

func NewWebhookHandler(uc *usecase.WebhookUsecase) *WebhookHandler {
	return &WebhookHandler{uc: uc}
}

type WebhookResponse struct {
	Received bool   `json:"received"`
	Result   string `json:"result"`
}

func (h *WebhookHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/payment/webhook", h.receive)
}

func (h *WebhookHandler) receive(c echo.Context) error {
	//署名は生のバイト列に対して検証する（Bindしない）
	body := http.MaxBytesReader(c.Response(), c.Request().Body, maxWebhookBody)
	raw, err := io.ReadAll(body)
	if err != nil {
		//上限超えは署名エラーと区別する
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "body too large"})
		}
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	res, err := h.uc.Handle(c.Request().Context(), raw, c.Request().Header.Get(paystack.SignatureHeader))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, WebhookResponse{Received: true, Result: string(res)})
}
