package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fx-trade-journal/internal/config"
	"fx-trade-journal/internal/journal"
	"fx-trade-journal/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TradeStore is the part of journal.Store the API needs.
type TradeStore interface {
	Insert(ctx context.Context, e journal.Entry) (int64, error)
	ListAll(ctx context.Context) ([]models.Trade, error)
	Get(ctx context.Context, id int64) (*models.Trade, error)
	Count(ctx context.Context) (int64, error)
	UpdateResult(ctx context.Context, id int64, result *models.Result, pips *int64) error
	Delete(ctx context.Context, id int64) error
	Location() *time.Location
}

var _ TradeStore = (*journal.Store)(nil)

// Server exposes the journal over HTTP.
type Server struct {
	server    *http.Server
	engine    *gin.Engine
	store     TradeStore
	pairs     []string
	logger    *zap.Logger
	StartTime time.Time
}

// New creates a Server. pairs are the options offered for new trades.
func New(cfg config.Server, pairs []string, store TradeStore, logger *zap.Logger) *Server {
	gin.SetMode(ginMode(cfg.Mode))

	s := &Server{
		store:     store,
		pairs:     pairs,
		logger:    logger.Named("api-server"),
		StartTime: time.Now(),
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestID())
	engine.Use(accessLog(s.logger))
	engine.Use(rateLimit(cfg.RateLimit, cfg.RateLimitBurst))
	s.routes(engine)
	s.engine = engine

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func ginMode(mode string) string {
	switch mode {
	case gin.DebugMode, gin.TestMode:
		return mode
	default:
		return gin.ReleaseMode
	}
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/healthz", s.healthHandler)
	r.GET("/readyz", s.readyHandler)

	api := r.Group("/api")
	api.GET("/status", s.statusHandler)
	api.GET("/pairs", s.pairsHandler)
	api.GET("/stats", s.statsHandler)

	trades := api.Group("/trades")
	trades.GET("", s.listTrades)
	trades.POST("", s.createTrade)
	trades.GET("/export", s.exportTrades)
	trades.GET("/:id", s.getTrade)
	trades.PUT("/:id/result", s.updateResult)
	trades.DELETE("/:id", s.deleteTrade)
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr is the address the server listens on.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start runs the HTTP server in a new goroutine.
func (s *Server) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}
