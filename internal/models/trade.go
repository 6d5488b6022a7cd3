package models

import (
	"fmt"
	"strings"
)

// TimeLayout is the layout of Trade.Time.
const TimeLayout = "2006-01-02 15:04:05"

// TradeType is the direction of a trade.
type TradeType string

const (
	Buy  TradeType = "Buy"
	Sell TradeType = "Sell"
)

// TradeTypes lists every valid TradeType.
var TradeTypes = []TradeType{Buy, Sell}

// ParseTradeType accepts "buy"/"BUY"/"Buy" style input.
func ParseTradeType(s string) (TradeType, error) {
	for _, t := range TradeTypes {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown trade type %q", s)
}

// Result is the outcome of a closed trade.
type Result string

const (
	Win       Result = "Win"
	Loss      Result = "Loss"
	Breakeven Result = "Breakeven"
)

// Results lists every valid Result.
var Results = []Result{Win, Loss, Breakeven}

// ParseResult accepts "win"/"WIN"/"Win" style input.
func ParseResult(s string) (Result, error) {
	for _, r := range Results {
		if strings.EqualFold(s, string(r)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown result %q", s)
}

// Trade represents a journal entry in the database.
// EntryPrice, Result and Pips were added to the table after its first
// release, so rows written before that may hold NULL in those columns.
type Trade struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Pair       string    `json:"pair"`
	TradeType  TradeType `json:"trade_type" gorm:"column:trade_type"`
	Time       string    `json:"time" gorm:"column:time"`
	EntryPrice *float64  `json:"entry_price" gorm:"column:entry_price;type:REAL"`
	TP         int64     `json:"tp" gorm:"column:tp"`
	SL         int64     `json:"sl" gorm:"column:sl"`
	RR         float64   `json:"rr" gorm:"column:rr"`
	Result     *Result   `json:"result" gorm:"column:result;type:TEXT"`
	Pips       *int64    `json:"pips" gorm:"column:pips;type:INTEGER"`
	Reason     string    `json:"reason"`
}

// TableName keeps the table name stable regardless of GORM naming strategy.
func (Trade) TableName() string {
	return "trades"
}
