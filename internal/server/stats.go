package server

import (
	"net/http"
	"time"

	"fx-trade-journal/internal/journal"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statsHandler returns weekly and monthly counts and the outcome summary of
// the selected trades.
func (s *Server) statsHandler(c *gin.Context) {
	trades, proceed := s.selectTrades(c)
	if !proceed {
		return
	}
	ok(c, http.StatusOK, journal.BuildReport(trades, s.logger), nil)
}

// Status is the body of /api/status.
type Status struct {
	Name       string `json:"name"`
	StartTime  string `json:"start_time"`
	Uptime     string `json:"uptime"`
	Timezone   string `json:"timezone"`
	TradeCount int64  `json:"trade_count"`
}

func (s *Server) statusHandler(c *gin.Context) {
	count, err := s.store.Count(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to count trades", zap.Error(err))
		internalError(c, err, "failed to read journal")
		return
	}
	ok(c, http.StatusOK, Status{
		Name:       "fx-trade-journal",
		StartTime:  s.StartTime.Format(time.RFC3339),
		Uptime:     time.Since(s.StartTime).Round(time.Second).String(),
		Timezone:   s.store.Location().String(),
		TradeCount: count,
	}, nil)
}

func (s *Server) pairsHandler(c *gin.Context) {
	ok(c, http.StatusOK, s.pairs, nil)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) readyHandler(c *gin.Context) {
	if _, err := s.store.Count(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
