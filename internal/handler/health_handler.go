package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Pingerは*sql.DBを想定
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.healthz)
}

func (h *HealthHandler) healthz(c echo.Context) error {
	if err := h.db.PingContext(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "db unavailable"})
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "ok"})
}
