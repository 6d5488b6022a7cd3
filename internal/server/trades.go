package server

import (
	"errors"
	"net/http"
	"strconv"

	"fx-trade-journal/internal/journal"
	"fx-trade-journal/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// selectionFromQuery reads pairs, types and since. An absent pairs or
// types parameter selects everything; a present but empty one selects nothing.
func selectionFromQuery(c *gin.Context) journal.Selection {
	var sel journal.Selection
	if raw, ok := c.GetQuery("pairs"); ok {
		sel.Pairs = journal.SplitList(raw)
	}
	if raw, ok := c.GetQuery("types"); ok {
		sel.Types = journal.SplitList(raw)
	}
	sel.Since = c.Query("since")
	return sel
}

// selectTrades loads the journal and applies the request's selection. It
// writes the error response itself and reports whether to continue.
func (s *Server) selectTrades(c *gin.Context) ([]models.Trade, bool) {
	all, err := s.store.ListAll(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to get trades from database", zap.Error(err))
		internalError(c, err, "failed to get trades")
		return nil, false
	}
	trades, err := selectionFromQuery(c).Select(all, s.store.Location(), s.logger)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return trades, true
}

func tradeID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "invalid trade id")
		return 0, false
	}
	return id, true
}

func (s *Server) listTrades(c *gin.Context) {
	trades, proceed := s.selectTrades(c)
	if !proceed {
		return
	}
	ok(c, http.StatusOK, trades, map[string]any{"count": len(trades)})
}

func (s *Server) createTrade(c *gin.Context) {
	var entry journal.Entry
	if err := c.ShouldBindJSON(&entry); err != nil {
		fail(c, http.StatusBadRequest, "malformed trade: "+err.Error())
		return
	}

	id, err := s.store.Insert(c.Request.Context(), entry)
	if errors.Is(err, journal.ErrValidation) {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		internalError(c, err, "failed to save trade")
		return
	}

	trade, err := s.store.Get(c.Request.Context(), id)
	if err != nil || trade == nil {
		ok(c, http.StatusCreated, gin.H{"id": id}, nil)
		return
	}
	ok(c, http.StatusCreated, trade, nil)
}

func (s *Server) getTrade(c *gin.Context) {
	id, proceed := tradeID(c)
	if !proceed {
		return
	}
	trade, err := s.store.Get(c.Request.Context(), id)
	if err != nil {
		internalError(c, err, "failed to get trade")
		return
	}
	if trade == nil {
		fail(c, http.StatusNotFound, "trade not found")
		return
	}
	ok(c, http.StatusOK, trade, nil)
}

type updateResultRequest struct {
	Result *models.Result `json:"result"`
	Pips   *int64         `json:"pips"`
}

// updateResult answers 200 even when the trade does not exist; data is
// then null.
func (s *Server) updateResult(c *gin.Context) {
	id, proceed := tradeID(c)
	if !proceed {
		return
	}
	var req updateResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "malformed update: "+err.Error())
		return
	}

	err := s.store.UpdateResult(c.Request.Context(), id, req.Result, req.Pips)
	if errors.Is(err, journal.ErrValidation) {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		internalError(c, err, "failed to update trade")
		return
	}

	trade, err := s.store.Get(c.Request.Context(), id)
	if err != nil {
		internalError(c, err, "failed to get trade")
		return
	}
	ok(c, http.StatusOK, trade, nil)
}

func (s *Server) deleteTrade(c *gin.Context) {
	id, proceed := tradeID(c)
	if !proceed {
		return
	}
	if err := s.store.Delete(c.Request.Context(), id); err != nil {
		internalError(c, err, "failed to delete trade")
		return
	}
	ok(c, http.StatusOK, gin.H{"id": id}, nil)
}

func (s *Server) exportTrades(c *gin.Context) {
	trades, proceed := s.selectTrades(c)
	if !proceed {
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="trade_journal.csv"`)
	c.Status(http.StatusOK)
	if err := journal.WriteCSV(c.Writer, trades); err != nil {
		// Headers are gone already; all that is left is to log it.
		s.logger.Error("Failed to write CSV export", zap.Error(err))
		_ = c.Error(err)
	}
}
