package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Ayflow350/Ice-empire/internal/config"
	"github.com/Ayflow350/Ice-empire/internal/middleware"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Newはルーティング済みのechoを返す
func New(cfg config.Config, log logrus.FieldLogger, h Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{cfg.SiteURL},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
	}))

	RegisterRoutes(e, cfg, h)
	return e
}

// Runはctxがキャンセルされるまでサーブし、その後graceful shutdownする
func Run(ctx context.Context, e *echo.Echo, addr string, log logrus.FieldLogger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("addr", addr).Info("http server started")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("http server shutting down")
		return e.Shutdown(sctx)
	})

	return g.Wait()
}
