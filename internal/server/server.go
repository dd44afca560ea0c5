package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/validator"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	echo   *echo.Echo
	addr   string
	logger *zap.Logger
}

func New(cfg config.Config, logger *zap.Logger, userRepo repository.UserRepository, h Handlers) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validator.New()

	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))
	if cfg.FEURL != "" {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins: []string{cfg.FEURL},
			AllowHeaders: []string{
				echo.HeaderAuthorization,
				echo.HeaderContentType,
				"X-Idempotency-Key",
			},
		}))
	}

	RegisterRoutes(e, cfg, userRepo, h)

	return &Server{echo: e, addr: listenAddr(cfg.Port), logger: logger}
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start は ctx が終わるまで待ち、グレースフルに止める
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server started", zap.String("addr", s.addr))
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}

func listenAddr(port string) string {
	if port == "" {
		return ":8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}
