// README: API gateway; builds the gin engine and serves it until the context ends.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"myride/internal/infra"
	"myride/internal/logging"
	"myride/internal/maps"
	"myride/internal/modules/booking"
	"myride/internal/modules/dashboard"
)

type ServerDeps struct {
	Sessions     *booking.Registry
	Dashboards   *dashboard.Service
	Geocoder     maps.Geocoder
	Router       maps.Router
	SearchLimit  int
	SearchLang   string
	Verifier     infra.TokenVerifier
	AllowOrigins []string
	Logger       *slog.Logger
}

type Server struct {
	deps   ServerDeps
	engine *gin.Engine
	logger *slog.Logger
}

func NewServer(deps ServerDeps) *Server {
	s := &Server{deps: deps, logger: logging.OrDefault(deps.Logger)}
	s.engine = NewRouter(deps)
	return s
}

func (s *Server) Routes() *gin.Engine {
	return s.engine
}

// Run serves on addr until ctx is done, then drains within shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
