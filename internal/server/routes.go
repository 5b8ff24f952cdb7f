package server

import (
	"github.com/Ayflow350/Ice-empire/internal/config"
	"github.com/Ayflow350/Ice-empire/internal/handler"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Payment    *handler.PaymentHandler
	Webhook    *handler.WebhookHandler
	AdminOrder *handler.AdminOrderHandler
	Product    *handler.ProductHandler
	Health     *handler.HealthHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers) {
	h.Health.RegisterRoutes(e)
	h.Product.RegisterRoutes(e)
	h.Payment.RegisterRoutes(e)
	h.Webhook.RegisterRoutes(e)
	h.AdminOrder.RegisterRoutes(e, cfg)
}
