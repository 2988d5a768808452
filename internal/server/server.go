package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/careops/billing-service/internal/correlation"
	"github.com/careops/billing-service/internal/ledger"
)

// Server is the HTTP surface of the billing ledger.
type Server struct {
	echo     *echo.Echo
	ledger   *ledger.Ledger
	log      zerolog.Logger
	validate *validator.Validate
}

// New builds the echo server with its middleware and routes.
func New(l *ledger.Ledger, log zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		ledger:   l,
		log:      log,
		validate: validator.New(),
	}

	e.Use(echomw.Recover())
	e.Use(s.correlationID)
	e.Use(s.requestLogger)

	e.GET("/health", s.health)

	v1 := e.Group("/v1")
	v1.POST("/bills", s.createBill)
	v1.GET("/bills", s.listBills)
	v1.GET("/bills/:bill_id", s.getBill)
	v1.POST("/bills/:bill_id/void", s.voidBill)
	v1.POST("/bills/:bill_id/pay", s.markPaid)

	return s
}

// Start serves HTTP on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// correlationID propagates the inbound X-Correlation-ID header, or generates
// a fresh id when absent, and echoes it on the response.
func (s *Server) correlationID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(correlation.Header)
		if id == "" {
			id = correlation.NewID()
		}
		c.Response().Header().Set(correlation.Header, id)
		c.SetRequest(c.Request().WithContext(correlation.WithID(c.Request().Context(), id)))
		return next(c)
	}
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		s.log.Info().
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Int("status", c.Response().Status).
			Dur("elapsed", time.Since(start)).
			Str("correlation_id", c.Response().Header().Get(correlation.Header)).
			Msg("request")
		return nil
	}
}
