package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/sleepstars/chatproxy/internal/callable"
	"github.com/sleepstars/chatproxy/internal/config"
	"github.com/sleepstars/chatproxy/internal/identity"
	"github.com/sleepstars/chatproxy/internal/logger"
	"github.com/sleepstars/chatproxy/internal/metrics"
	"github.com/sleepstars/chatproxy/internal/models"
)

const shutdownTimeout = 10 * time.Second

// InvocationHandler handles one delivered invocation.
type InvocationHandler interface {
	Handle(ctx context.Context, inv *models.Invocation) (json.RawMessage, error)
}

// Server hosts the proxy function over HTTP. It delivers each request to
// the handler as an invocation and never runs more than MaxInstances
// invocations at once.
type Server struct {
	cfg      config.ServerConfig
	handler  InvocationHandler
	verifier identity.Verifier
	metrics  *metrics.Metrics
	logger   *logger.Logger
	slots    chan struct{}
	router   *gin.Engine
}

// New creates a server. verifier may be nil, in which case every
// invocation is a guest invocation and bearer tokens are rejected.
func New(cfg config.ServerConfig, handler InvocationHandler, verifier identity.Verifier, m *metrics.Metrics) *Server {
	log := logger.GetLogger().WithComponent("server")

	s := &Server{
		cfg:      cfg,
		handler:  handler,
		verifier: verifier,
		metrics:  m,
		logger:   log,
	}
	if cfg.MaxInstances > 0 {
		s.slots = make(chan struct{}, cfg.MaxInstances)
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(
		requestID(),
		accessLog(s.logger),
		gin.CustomRecoveryWithWriter(s.logger.Writer(logger.ERROR), func(c *gin.Context, _ interface{}) {
			ce := callable.NewError(callable.Internal, callable.MsgProcessingFailed)
			c.AbortWithStatusJSON(ce.HTTPStatus(), ce.Envelope())
		}),
	)

	r.POST(s.cfg.FunctionPath, s.authenticate(), s.limit(), s.invoke)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	return r
}

// Handler returns the HTTP handler with CORS applied.
func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodPost, http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	}).Handler(s.router)
}

// Run serves until ctx is cancelled, then drains in-flight invocations.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening on %s, function path %s, max instances %d",
			s.cfg.ListenAddr, s.cfg.FunctionPath, s.cfg.MaxInstances)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
