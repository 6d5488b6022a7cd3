package journal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"fx-trade-journal/internal/database"
	"fx-trade-journal/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrValidation is wrapped by every error caused by caller input.
var ErrValidation = errors.New("invalid trade")

// Entry is the caller-supplied part of a trade. ID, Time and RR are
// assigned by the store.
type Entry struct {
	Pair       string           `json:"pair"`
	TradeType  models.TradeType `json:"trade_type"`
	EntryPrice float64          `json:"entry_price"`
	TP         int64            `json:"tp"`
	SL         int64            `json:"sl"`
	Result     *models.Result   `json:"result,omitempty"`
	Pips       *int64           `json:"pips,omitempty"`
	Reason     string           `json:"reason"`

	// Time overrides the insertion clock. Only imports set it.
	Time time.Time `json:"-"`
}

// Validate reports every problem with e, wrapped in ErrValidation.
func (e Entry) Validate() error {
	var problems []string
	if strings.TrimSpace(e.Pair) == "" {
		problems = append(problems, "pair is required")
	}
	if _, err := models.ParseTradeType(string(e.TradeType)); err != nil {
		problems = append(problems, err.Error())
	}
	if e.EntryPrice <= 0 {
		problems = append(problems, "entry price must be greater than 0")
	}
	if e.TP <= 0 {
		problems = append(problems, "tp must be greater than 0")
	}
	if e.SL <= 0 {
		problems = append(problems, "sl must be greater than 0")
	}
	if e.Result != nil && *e.Result != "" {
		if _, err := models.ParseResult(string(*e.Result)); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

// ComputeRR returns tp/sl rounded to two decimals. The rounding is done on
// the float64 quotient, so 1/40 (stored as 0.025000000000000001) gives 0.03.
func ComputeRR(tp, sl int64) float64 {
	if sl == 0 {
		return 0
	}
	q := float64(tp) / float64(sl)
	rr, err := strconv.ParseFloat(strconv.FormatFloat(q, 'f', 2, 64), 64)
	if err != nil {
		return q
	}
	return rr
}

// Store persists trades in the journal database. Mutating calls are
// serialised; every call commits before it returns.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
	loc *time.Location
	now func() time.Time
	mu  sync.Mutex
}

// Option customises a Store.
type Option func(*Store)

// WithLocation sets the zone insertion timestamps are written in.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) { s.loc = loc }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store over db. Call Initialize before first use.
func NewStore(db *gorm.DB, log *zap.Logger, opts ...Option) *Store {
	s := &Store{
		db:  db,
		log: log.Named("store"),
		loc: time.UTC,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location is the zone trade timestamps are expressed in.
func (s *Store) Location() *time.Location {
	return s.loc
}

// Initialize brings the schema up to date. It is safe to call on every start.
func (s *Store) Initialize(ctx context.Context) error {
	_, err := s.Migrate(ctx)
	return err
}

// Migrate is Initialize, reporting the names of the steps it applied.
func (s *Store) Migrate(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	applied, err := database.Migrate(s.db.WithContext(ctx), s.log)
	if err != nil {
		return nil, err
	}
	s.log.Info("Schema is up to date", zap.Strings("applied", applied))
	return applied, nil
}

// Insert validates e and appends it to the journal, returning the new id.
func (s *Store) Insert(ctx context.Context, e Entry) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}

	ts := e.Time
	if ts.IsZero() {
		ts = s.now()
	}
	tradeType, _ := models.ParseTradeType(string(e.TradeType))
	entryPrice := e.EntryPrice

	trade := models.Trade{
		Pair:       strings.ToUpper(strings.TrimSpace(e.Pair)),
		TradeType:  tradeType,
		Time:       ts.In(s.loc).Format(models.TimeLayout),
		EntryPrice: &entryPrice,
		TP:         e.TP,
		SL:         e.SL,
		RR:         ComputeRR(e.TP, e.SL),
		Result:     normalizeResult(e.Result),
		Pips:       e.Pips,
		Reason:     e.Reason,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.WithContext(ctx).Create(&trade).Error; err != nil {
		s.log.Error("Failed to save trade", zap.Error(err))
		return 0, fmt.Errorf("failed to save trade: %w", err)
	}
	s.log.Info("Saved trade",
		zap.Int64("trade_id", trade.ID),
		zap.String("pair", trade.Pair),
		zap.String("trade_type", string(trade.TradeType)),
		zap.Float64("rr", trade.RR))
	return trade.ID, nil
}

// ListAll returns every trade in id order.
func (s *Store) ListAll(ctx context.Context) ([]models.Trade, error) {
	var trades []models.Trade
	if err := s.db.WithContext(ctx).Order("id").Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	return trades, nil
}

// Get returns the trade with the given id, or nil if there is none.
func (s *Store) Get(ctx context.Context, id int64) (*models.Trade, error) {
	var trade models.Trade
	err := s.db.WithContext(ctx).First(&trade, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade %d: %w", id, err)
	}
	return &trade, nil
}

// Count returns the number of trades in the journal.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Trade{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}
	return n, nil
}

// UpdateResult overwrites result and pips of trade id. A missing id is not
// an error.
func (s *Store) UpdateResult(ctx context.Context, id int64, result *models.Result, pips *int64) error {
	if result != nil && *result != "" {
		if _, err := models.ParseResult(string(*result)); err != nil {
			return fmt.Errorf("%w: %s", ErrValidation, err)
		}
	}

	values := map[string]interface{}{"result": nil, "pips": nil}
	if r := normalizeResult(result); r != nil {
		values["result"] = string(*r)
	}
	if pips != nil {
		values["pips"] = *pips
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.db.WithContext(ctx).Model(&models.Trade{}).Where("id = ?", id).Updates(values)
	if tx.Error != nil {
		s.log.Error("Failed to update trade", zap.Int64("trade_id", id), zap.Error(tx.Error))
		return fmt.Errorf("failed to update trade %d: %w", id, tx.Error)
	}
	if tx.RowsAffected == 0 {
		s.log.Debug("No trade to update", zap.Int64("trade_id", id))
		return nil
	}
	s.log.Info("Updated trade result", zap.Int64("trade_id", id), zap.Any("result", values["result"]), zap.Any("pips", values["pips"]))
	return nil
}

// Delete removes trade id. A missing id is not an error.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.db.WithContext(ctx).Delete(&models.Trade{}, id)
	if tx.Error != nil {
		s.log.Error("Failed to delete trade", zap.Int64("trade_id", id), zap.Error(tx.Error))
		return fmt.Errorf("failed to delete trade %d: %w", id, tx.Error)
	}
	if tx.RowsAffected > 0 {
		s.log.Info("Deleted trade", zap.Int64("trade_id", id))
	}
	return nil
}

// normalizeResult maps an empty result to nil and fixes the casing.
func normalizeResult(r *models.Result) *models.Result {
	if r == nil || *r == "" {
		return nil
	}
	parsed, err := models.ParseResult(string(*r))
	if err != nil {
		return r
	}
	return &parsed
}
