package server

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fx-trade-journal/internal/config"
	"fx-trade-journal/internal/database"
	"fx-trade-journal/internal/journal"
	"fx-trade-journal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var ist = time.FixedZone("IST", 5*3600+30*60)

// MockStore is a mock implementation of TradeStore.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Insert(ctx context.Context, e journal.Entry) (int64, error) {
	args := m.Called(e)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) ListAll(ctx context.Context) ([]models.Trade, error) {
	args := m.Called()
	trades, _ := args.Get(0).([]models.Trade)
	return trades, args.Error(1)
}

func (m *MockStore) Get(ctx context.Context, id int64) (*models.Trade, error) {
	args := m.Called(id)
	trade, _ := args.Get(0).(*models.Trade)
	return trade, args.Error(1)
}

func (m *MockStore) Count(ctx context.Context) (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) UpdateResult(ctx context.Context, id int64, result *models.Result, pips *int64) error {
	args := m.Called(id, result, pips)
	return args.Error(0)
}

func (m *MockStore) Delete(ctx context.Context, id int64) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockStore) Location() *time.Location {
	return ist
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
}

func testServerConfig() config.Server {
	return config.Server{Port: 0, Mode: "test", RateLimit: 0}
}

// setupServer creates a server backed by a real store on an in-memory database.
func setupServer(t *testing.T) (*Server, *journal.Store) {
	t.Helper()
	db, err := database.NewDatabase(config.Database{DSN: "file::memory:", LogLevel: "silent"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	now := time.Date(2025, 3, 12, 4, 0, 0, 0, time.UTC)
	store := journal.NewStore(db, zap.NewNop(), journal.WithLocation(ist), journal.WithClock(func() time.Time { return now }))
	require.NoError(t, store.Initialize(context.Background()))

	return New(testServerConfig(), []string{"EURUSD", "GBPUSD"}, store, zap.NewNop()), store
}

func do(t *testing.T, s *Server, method, target string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func entryBody(pair, tradeType string, tp, sl int64) map[string]any {
	return map[string]any{
		"pair":        pair,
		"trade_type":  tradeType,
		"entry_price": 1.1,
		"tp":          tp,
		"sl":          sl,
		"reason":      "test",
	}
}

func TestCreateTrade(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		s, _ := setupServer(t)

		// Act
		rec, env := do(t, s, http.MethodPost, "/api/trades", entryBody("EURUSD", "Buy", 50, 25))

		// Assert
		assert.Equal(t, http.StatusCreated, rec.Code)
		var trade models.Trade
		require.NoError(t, json.Unmarshal(env.Data, &trade))
		assert.Equal(t, int64(1), trade.ID)
		assert.Equal(t, 2.0, trade.RR)
		assert.Equal(t, "2025-03-12 09:30:00", trade.Time)
		assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	})

	t.Run("RR from the body is ignored", func(t *testing.T) {
		s, _ := setupServer(t)
		body := entryBody("EURUSD", "Buy", 30, 20)
		body["rr"] = 9.99

		_, env := do(t, s, http.MethodPost, "/api/trades", body)

		var trade models.Trade
		require.NoError(t, json.Unmarshal(env.Data, &trade))
		assert.Equal(t, 1.5, trade.RR)
	})

	t.Run("Validation failure writes nothing", func(t *testing.T) {
		s, store := setupServer(t)

		rec, env := do(t, s, http.MethodPost, "/api/trades", entryBody("EURUSD", "Buy", 0, 25))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, env.Message, "tp must be greater than 0")
		n, err := store.Count(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("Malformed body", func(t *testing.T) {
		s, _ := setupServer(t)
		req := httptest.NewRequest(http.MethodPost, "/api/trades", strings.NewReader("{not json"))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		s.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListTrades(t *testing.T) {
	s, _ := setupServer(t)
	for _, b := range []map[string]any{
		entryBody("EURUSD", "Buy", 50, 25),
		entryBody("GBPUSD", "Sell", 30, 10),
		entryBody("EURUSD", "Sell", 20, 10),
	} {
		rec, _ := do(t, s, http.MethodPost, "/api/trades", b)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	testCases := []struct {
		name  string
		query string
		want  []int64
	}{
		{"Everything by default", "", []int64{1, 2, 3}},
		{"One pair", "?pairs=EURUSD", []int64{1, 3}},
		{"Pair and type", "?pairs=EURUSD&types=Buy", []int64{1}},
		{"Since before", "?since=2025-03-12", []int64{1, 2, 3}},
		{"Since after", "?since=2025-03-13", []int64{}},
		{"Empty pairs selects nothing", "?pairs=", []int64{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := do(t, s, http.MethodGet, "/api/trades"+tc.query, nil)

			require.Equal(t, http.StatusOK, rec.Code)
			var trades []models.Trade
			require.NoError(t, json.Unmarshal(env.Data, &trades))
			got := []int64{}
			for _, tr := range trades {
				got = append(got, tr.ID)
			}
			assert.Equal(t, tc.want, got)
			assert.Equal(t, float64(len(tc.want)), env.Meta["count"])
		})
	}

	t.Run("Bad since", func(t *testing.T) {
		rec, _ := do(t, s, http.MethodGet, "/api/trades?since=yesterday", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Bad type", func(t *testing.T) {
		rec, _ := do(t, s, http.MethodGet, "/api/trades?types=Long", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUpdateAndDeleteTrade(t *testing.T) {
	s, store := setupServer(t)
	rec, _ := do(t, s, http.MethodPost, "/api/trades", entryBody("EURUSD", "Buy", 50, 25))
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("Update result", func(t *testing.T) {
		rec, env := do(t, s, http.MethodPut, "/api/trades/1/result", map[string]any{"result": "Win", "pips": 25})

		assert.Equal(t, http.StatusOK, rec.Code)
		var trade models.Trade
		require.NoError(t, json.Unmarshal(env.Data, &trade))
		require.NotNil(t, trade.Result)
		assert.Equal(t, models.Win, *trade.Result)
		require.NotNil(t, trade.Pips)
		assert.Equal(t, int64(25), *trade.Pips)
		assert.Equal(t, 2.0, trade.RR)
	})

	t.Run("Update unknown result", func(t *testing.T) {
		rec, _ := do(t, s, http.MethodPut, "/api/trades/1/result", map[string]any{"result": "Jackpot"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Update missing trade is a no-op", func(t *testing.T) {
		rec, env := do(t, s, http.MethodPut, "/api/trades/42/result", map[string]any{"result": "Loss", "pips": -5})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "null", string(env.Data))
	})

	t.Run("Get", func(t *testing.T) {
		rec, _ := do(t, s, http.MethodGet, "/api/trades/1", nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec, _ = do(t, s, http.MethodGet, "/api/trades/42", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec, _ = do(t, s, http.MethodGet, "/api/trades/abc", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Delete", func(t *testing.T) {
		rec, _ := do(t, s, http.MethodDelete, "/api/trades/1", nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		trades, err := store.ListAll(context.Background())
		require.NoError(t, err)
		assert.Empty(t, trades)

		rec, _ = do(t, s, http.MethodDelete, "/api/trades/1", nil)
		assert.Equal(t, http.StatusOK, rec.Code, "deleting twice is a no-op")
	})
}

func TestExportTrades(t *testing.T) {
	s, _ := setupServer(t)
	do(t, s, http.MethodPost, "/api/trades", entryBody("EURUSD", "Buy", 50, 25))
	do(t, s, http.MethodPost, "/api/trades", entryBody("GBPUSD", "Sell", 30, 10))

	req := httptest.NewRequest(http.MethodGet, "/api/trades/export?pairs=GBPUSD", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "trade_journal.csv")

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, journal.CSVHeader, rows[0])
	assert.Equal(t, "GBPUSD", rows[1][1])
	assert.Equal(t, "3", rows[1][7])
}

func TestStatsHandler(t *testing.T) {
	s, _ := setupServer(t)
	do(t, s, http.MethodPost, "/api/trades", entryBody("EURUSD", "Buy", 50, 25))
	do(t, s, http.MethodPost, "/api/trades", entryBody("GBPUSD", "Sell", 30, 10))

	rec, env := do(t, s, http.MethodGet, "/api/stats", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var report journal.Report
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, []journal.Bucket{{Key: 11, Count: 2}}, report.Weekly)
	assert.Equal(t, []journal.Bucket{{Key: 3, Count: 2}}, report.Monthly)
	assert.Equal(t, 2, report.Summary.TotalTrades)
	assert.Equal(t, 2.5, report.Summary.AverageRR)
}

func TestStatusPairsAndHealth(t *testing.T) {
	s, _ := setupServer(t)
	do(t, s, http.MethodPost, "/api/trades", entryBody("EURUSD", "Buy", 50, 25))

	rec, env := do(t, s, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status Status
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, int64(1), status.TradeCount)
	assert.Equal(t, "IST", status.Timezone)

	rec, env = do(t, s, http.MethodGet, "/api/pairs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pairs []string
	require.NoError(t, json.Unmarshal(env.Data, &pairs))
	assert.Equal(t, []string{"EURUSD", "GBPUSD"}, pairs)

	rec, _ = do(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, s, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStorageFailures(t *testing.T) {
	storageErr := errors.New("disk I/O error")

	t.Run("List", func(t *testing.T) {
		store := new(MockStore)
		store.On("ListAll").Return(nil, storageErr)
		s := New(testServerConfig(), nil, store, zap.NewNop())

		rec, env := do(t, s, http.MethodGet, "/api/trades", nil)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "failed to get trades", env.Message)
		store.AssertExpectations(t)
	})

	t.Run("Insert", func(t *testing.T) {
		store := new(MockStore)
		store.On("Insert", mock.AnythingOfType("journal.Entry")).Return(int64(0), storageErr)
		s := New(testServerConfig(), nil, store, zap.NewNop())

		rec, _ := do(t, s, http.MethodPost, "/api/trades", entryBody("EURUSD", "Buy", 50, 25))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		store.AssertExpectations(t)
	})

	t.Run("Delete", func(t *testing.T) {
		store := new(MockStore)
		store.On("Delete", int64(3)).Return(storageErr)
		s := New(testServerConfig(), nil, store, zap.NewNop())

		rec, _ := do(t, s, http.MethodDelete, "/api/trades/3", nil)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		store.AssertExpectations(t)
	})

	t.Run("Ready", func(t *testing.T) {
		store := new(MockStore)
		store.On("Count").Return(int64(0), storageErr)
		s := New(testServerConfig(), nil, store, zap.NewNop())

		rec, _ := do(t, s, http.MethodGet, "/readyz", nil)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestRateLimit(t *testing.T) {
	store := new(MockStore)
	store.On("Count").Return(int64(0), nil)
	cfg := testServerConfig()
	cfg.RateLimit = 0.001
	cfg.RateLimitBurst = 1
	s := New(cfg, nil, store, zap.NewNop())

	first, _ := do(t, s, http.MethodGet, "/readyz", nil)
	second, env := do(t, s, http.MethodGet, "/readyz", nil)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "rate limit exceeded", env.Message)
}

func TestRequestIDIsEchoed(t *testing.T) {
	s, _ := setupServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}
