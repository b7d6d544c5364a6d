// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	apperrors "optionlab/internal/errors"
	"optionlab/internal/metrics"
	"optionlab/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db        *sqlx.DB
	mu        sync.RWMutex
	syncTimes map[string]time.Time
}

// NewSQLiteStore creates a new SQLite-based data store. Transactions take
// the write lock on BEGIN so the check-then-upsert of a trade row is atomic.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:        db,
		syncTimes: make(map[string]time.Time),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Daily reconciled rows, one per position-day
	CREATE TABLE IF NOT EXISTS trades (
		trade_date TEXT NOT NULL,
		symbol TEXT NOT NULL,
		strike REAL NOT NULL,
		expiration TEXT NOT NULL,
		stock_trade_price REAL NOT NULL,
		effective_delta REAL NOT NULL,
		call_trade_price REAL NOT NULL,
		call_action TEXT NOT NULL CHECK (call_action IN ('buy', 'sell')),
		call_qty INTEGER NOT NULL,
		put_trade_price REAL NOT NULL,
		put_action TEXT NOT NULL CHECK (put_action IN ('buy', 'sell')),
		put_qty INTEGER NOT NULL,
		stock_close_price REAL NOT NULL,
		call_close_price REAL NOT NULL,
		put_close_price REAL NOT NULL,
		daily_pnl REAL NOT NULL,
		pct_change REAL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (trade_date, symbol, strike, expiration, call_action, put_action, call_qty, put_qty)
	);

	-- Tracked positions as entered
	CREATE TABLE IF NOT EXISTS positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		trade_date TEXT NOT NULL,
		symbol TEXT NOT NULL,
		strike REAL NOT NULL,
		expiration TEXT NOT NULL,
		stock_trade_price REAL NOT NULL,
		effective_delta REAL NOT NULL,
		call_trade_price REAL NOT NULL,
		call_action TEXT NOT NULL CHECK (call_action IN ('buy', 'sell')),
		call_qty INTEGER NOT NULL,
		put_trade_price REAL NOT NULL,
		put_action TEXT NOT NULL CHECK (put_action IN ('buy', 'sell')),
		put_qty INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (trade_date, symbol, strike, expiration, call_action, put_action, call_qty, put_qty)
	);

	-- Model vs market snapshots, append-only
	CREATE TABLE IF NOT EXISTS valuations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		date TEXT NOT NULL,
		expiration TEXT NOT NULL,
		strike REAL NOT NULL,
		stock_price REAL NOT NULL,
		volatility REAL NOT NULL,
		call_premium REAL,
		call_bid REAL,
		call_ask REAL,
		call_model_price REAL NOT NULL,
		call_delta REAL NOT NULL,
		call_implied_vol REAL,
		call_verdict TEXT NOT NULL,
		put_premium REAL,
		put_bid REAL,
		put_ask REAL,
		put_model_price REAL NOT NULL,
		put_delta REAL NOT NULL,
		put_implied_vol REAL,
		put_verdict TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Sync status table
	CREATE TABLE IF NOT EXISTS sync_status (
		data_type TEXT PRIMARY KEY,
		last_sync DATETIME NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_trades_symbol_date ON trades(symbol, trade_date);
	CREATE INDEX IF NOT EXISTS idx_valuations_symbol_date ON valuations(symbol, date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// observe records a database operation in metrics and wraps its error.
func observe(operation, table string, start time.Time, err error) error {
	metrics.RecordDBQuery(operation, time.Since(start), err)
	if err == nil {
		return nil
	}
	if apperrors.Is(err, apperrors.ErrDataNotFound) {
		return err
	}
	return apperrors.NewStoreError(operation, table, err)
}

// ============================================================================
// Positions Methods
// ============================================================================

type positionRow struct {
	ID              int64   `db:"id"`
	TradeDate       string  `db:"trade_date"`
	Symbol          string  `db:"symbol"`
	Strike          float64 `db:"strike"`
	Expiration      string  `db:"expiration"`
	StockTradePrice float64 `db:"stock_trade_price"`
	EffectiveDelta  float64 `db:"effective_delta"`
	CallTradePrice  float64 `db:"call_trade_price"`
	CallAction      string  `db:"call_action"`
	CallQty         int     `db:"call_qty"`
	PutTradePrice   float64 `db:"put_trade_price"`
	PutAction       string  `db:"put_action"`
	PutQty          int     `db:"put_qty"`
}

func toPositionRow(p models.Position) positionRow {
	return positionRow{
		ID:              p.ID,
		TradeDate:       formatDay(p.TradeDate),
		Symbol:          p.Symbol,
		Strike:          p.Strike,
		Expiration:      formatDay(p.Expiration),
		StockTradePrice: p.StockTradePrice,
		EffectiveDelta:  p.EffectiveDelta,
		CallTradePrice:  p.CallTradePrice,
		CallAction:      string(p.CallAction),
		CallQty:         p.CallQty,
		PutTradePrice:   p.PutTradePrice,
		PutAction:       string(p.PutAction),
		PutQty:          p.PutQty,
	}
}

func (r positionRow) model() (models.Position, error) {
	tradeDate, err := models.ParseDay(r.TradeDate)
	if err != nil {
		return models.Position{}, fmt.Errorf("trade_date: %w", err)
	}
	expiration, err := models.ParseDay(r.Expiration)
	if err != nil {
		return models.Position{}, fmt.Errorf("expiration: %w", err)
	}
	return models.Position{
		ID:              r.ID,
		TradeDate:       tradeDate,
		Symbol:          r.Symbol,
		Strike:          r.Strike,
		Expiration:      expiration,
		StockTradePrice: r.StockTradePrice,
		EffectiveDelta:  r.EffectiveDelta,
		CallTradePrice:  r.CallTradePrice,
		CallAction:      models.Action(r.CallAction),
		CallQty:         r.CallQty,
		PutTradePrice:   r.PutTradePrice,
		PutAction:       models.Action(r.PutAction),
		PutQty:          r.PutQty,
	}, nil
}

// SavePosition inserts a position, or updates the entry prices of an
// existing one with the same key. pos.ID is set to the stored row id.
func (s *SQLiteStore) SavePosition(ctx context.Context, pos *models.Position) (err error) {
	start := time.Now()
	defer func() { err = observe("save_position", "positions", start, err) }()

	query, args, err := s.db.BindNamed(`
		INSERT INTO positions (trade_date, symbol, strike, expiration, stock_trade_price, effective_delta,
			call_trade_price, call_action, call_qty, put_trade_price, put_action, put_qty)
		VALUES (:trade_date, :symbol, :strike, :expiration, :stock_trade_price, :effective_delta,
			:call_trade_price, :call_action, :call_qty, :put_trade_price, :put_action, :put_qty)
		ON CONFLICT (trade_date, symbol, strike, expiration, call_action, put_action, call_qty, put_qty)
		DO UPDATE SET
			stock_trade_price = excluded.stock_trade_price,
			effective_delta = excluded.effective_delta,
			call_trade_price = excluded.call_trade_price,
			put_trade_price = excluded.put_trade_price
		RETURNING id
	`, toPositionRow(*pos))
	if err != nil {
		return err
	}

	var id int64
	if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}
	pos.ID = id
	return nil
}

// GetPosition retrieves a position by id.
func (s *SQLiteStore) GetPosition(ctx context.Context, id int64) (_ models.Position, err error) {
	start := time.Now()
	defer func() { err = observe("get_position", "positions", start, err) }()

	var row positionRow
	err = s.db.GetContext(ctx, &row, `SELECT `+positionColumns+` FROM positions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Position{}, apperrors.Wrapf(apperrors.ErrDataNotFound, "position %d", id)
	}
	if err != nil {
		return models.Position{}, fmt.Errorf("failed to get position: %w", err)
	}
	return row.model()
}

// ListPositions returns all positions ordered by entry date.
func (s *SQLiteStore) ListPositions(ctx context.Context) (_ []models.Position, err error) {
	start := time.Now()
	defer func() { err = observe("list_positions", "positions", start, err) }()

	var rows []positionRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+positionColumns+` FROM positions ORDER BY trade_date, id`); err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}

	positions := make([]models.Position, 0, len(rows))
	for _, r := range rows {
		p, err := r.model()
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, nil
}

// DeletePosition removes a position. Its trade rows are kept.
func (s *SQLiteStore) DeletePosition(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { err = observe("delete_position", "positions", start, err) }()

	res, err := s.db.ExecContext(ctx, `DELETE FROM positions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.Wrapf(apperrors.ErrDataNotFound, "position %d", id)
	}
	return nil
}

const positionColumns = `id, trade_date, symbol, strike, expiration, stock_trade_price, effective_delta,
	call_trade_price, call_action, call_qty, put_trade_price, put_action, put_qty`

// ============================================================================
// Trade Record Methods
// ============================================================================

type tradeRow struct {
	TradeDate       string           `db:"trade_date"`
	Symbol          string           `db:"symbol"`
	Strike          float64          `db:"strike"`
	Expiration      string           `db:"expiration"`
	StockTradePrice float64          `db:"stock_trade_price"`
	EffectiveDelta  float64          `db:"effective_delta"`
	CallTradePrice  float64          `db:"call_trade_price"`
	CallAction      string           `db:"call_action"`
	CallQty         int              `db:"call_qty"`
	PutTradePrice   float64          `db:"put_trade_price"`
	PutAction       string           `db:"put_action"`
	PutQty          int              `db:"put_qty"`
	StockClosePrice float64          `db:"stock_close_price"`
	CallClosePrice  float64          `db:"call_close_price"`
	PutClosePrice   float64          `db:"put_close_price"`
	DailyPnL        float64          `db:"daily_pnl"`
	PctChange       models.NullFloat `db:"pct_change"`
}

func toTradeRow(r models.TradeRecord) tradeRow {
	return tradeRow{
		TradeDate:       formatDay(r.TradeDate),
		Symbol:          r.Symbol,
		Strike:          r.Strike,
		Expiration:      formatDay(r.Expiration),
		StockTradePrice: r.StockTradePrice,
		EffectiveDelta:  r.EffectiveDelta,
		CallTradePrice:  r.CallTradePrice,
		CallAction:      string(r.CallAction),
		CallQty:         r.CallQty,
		PutTradePrice:   r.PutTradePrice,
		PutAction:       string(r.PutAction),
		PutQty:          r.PutQty,
		StockClosePrice: r.StockClosePrice,
		CallClosePrice:  r.CallClosePrice,
		PutClosePrice:   r.PutClosePrice,
		DailyPnL:        r.DailyPnL,
		PctChange:       r.PctChange,
	}
}

func (r tradeRow) model() (models.TradeRecord, error) {
	tradeDate, err := models.ParseDay(r.TradeDate)
	if err != nil {
		return models.TradeRecord{}, fmt.Errorf("trade_date: %w", err)
	}
	expiration, err := models.ParseDay(r.Expiration)
	if err != nil {
		return models.TradeRecord{}, fmt.Errorf("expiration: %w", err)
	}
	return models.TradeRecord{
		TradeDate:       tradeDate,
		Symbol:          r.Symbol,
		Strike:          r.Strike,
		Expiration:      expiration,
		StockTradePrice: r.StockTradePrice,
		EffectiveDelta:  r.EffectiveDelta,
		CallTradePrice:  r.CallTradePrice,
		CallAction:      models.Action(r.CallAction),
		CallQty:         r.CallQty,
		PutTradePrice:   r.PutTradePrice,
		PutAction:       models.Action(r.PutAction),
		PutQty:          r.PutQty,
		StockClosePrice: r.StockClosePrice,
		CallClosePrice:  r.CallClosePrice,
		PutClosePrice:   r.PutClosePrice,
		DailyPnL:        r.DailyPnL,
		PctChange:       r.PctChange,
	}, nil
}

const tradeKeyWhere = `trade_date = :trade_date AND symbol = :symbol AND strike = :strike
	AND expiration = :expiration AND call_action = :call_action AND put_action = :put_action
	AND call_qty = :call_qty AND put_qty = :put_qty`

const upsertTradeSQL = `
	INSERT INTO trades (trade_date, symbol, strike, expiration, stock_trade_price, effective_delta,
		call_trade_price, call_action, call_qty, put_trade_price, put_action, put_qty,
		stock_close_price, call_close_price, put_close_price, daily_pnl, pct_change)
	VALUES (:trade_date, :symbol, :strike, :expiration, :stock_trade_price, :effective_delta,
		:call_trade_price, :call_action, :call_qty, :put_trade_price, :put_action, :put_qty,
		:stock_close_price, :call_close_price, :put_close_price, :daily_pnl, :pct_change)
	ON CONFLICT (trade_date, symbol, strike, expiration, call_action, put_action, call_qty, put_qty)
	DO UPDATE SET
		stock_trade_price = excluded.stock_trade_price,
		effective_delta = excluded.effective_delta,
		call_trade_price = excluded.call_trade_price,
		put_trade_price = excluded.put_trade_price,
		stock_close_price = excluded.stock_close_price,
		call_close_price = excluded.call_close_price,
		put_close_price = excluded.put_close_price,
		daily_pnl = excluded.daily_pnl,
		pct_change = excluded.pct_change,
		updated_at = CURRENT_TIMESTAMP
`

// UpsertTradeRecord writes rec keyed by its natural key. An existing row
// with the same key is fully overwritten and replaced is true.
func (s *SQLiteStore) UpsertTradeRecord(ctx context.Context, rec models.TradeRecord) (replaced bool, err error) {
	res, err := s.UpsertTradeRecords(ctx, []models.TradeRecord{rec})
	return res.Replaced > 0, err
}

// UpsertTradeRecords writes recs in a single transaction.
func (s *SQLiteStore) UpsertTradeRecords(ctx context.Context, recs []models.TradeRecord) (result UpsertResult, err error) {
	if len(recs) == 0 {
		return result, nil
	}

	start := time.Now()
	defer func() { err = observe("upsert_trades", "trades", start, err) }()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	exists, err := tx.PrepareNamedContext(ctx, `SELECT EXISTS (SELECT 1 FROM trades WHERE `+tradeKeyWhere+`)`)
	if err != nil {
		return result, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer exists.Close()

	upsert, err := tx.PrepareNamedContext(ctx, upsertTradeSQL)
	if err != nil {
		return result, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer upsert.Close()

	replaced := make([]bool, 0, len(recs))
	for _, rec := range recs {
		row := toTradeRow(rec)

		var found bool
		if err := exists.GetContext(ctx, &found, row); err != nil {
			return UpsertResult{}, fmt.Errorf("failed to check trade row: %w", err)
		}
		if _, err := upsert.ExecContext(ctx, row); err != nil {
			return UpsertResult{}, fmt.Errorf("failed to upsert trade row: %w", err)
		}
		replaced = append(replaced, found)
		if found {
			result.Replaced++
			result.ReplacedKeys = append(result.ReplacedKeys, rec.Key())
		} else {
			result.Inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return UpsertResult{}, fmt.Errorf("failed to commit: %w", err)
	}
	for _, r := range replaced {
		metrics.RecordUpsert(r)
	}
	return result, nil
}

// TradeRecords returns trade rows matching filter ordered by date.
func (s *SQLiteStore) TradeRecords(ctx context.Context, filter TradeFilter) (_ []models.TradeRecord, err error) {
	start := time.Now()
	defer func() { err = observe("get_trades", "trades", start, err) }()

	var conditions []string
	var args []interface{}

	if p := filter.Position; p != nil {
		conditions = append(conditions,
			"symbol = ?", "strike = ?", "expiration = ?",
			"call_action = ?", "put_action = ?", "call_qty = ?", "put_qty = ?", "trade_date >= ?")
		args = append(args, p.Symbol, p.Strike, formatDay(p.Expiration),
			string(p.CallAction), string(p.PutAction), p.CallQty, p.PutQty, formatDay(p.TradeDate))
	} else if filter.Symbol != "" {
		conditions = append(conditions, "symbol = ?")
		args = append(args, filter.Symbol)
	}
	if !filter.StartDate.IsZero() {
		conditions = append(conditions, "trade_date >= ?")
		args = append(args, formatDay(filter.StartDate))
	}
	if !filter.EndDate.IsZero() {
		conditions = append(conditions, "trade_date <= ?")
		args = append(args, formatDay(filter.EndDate))
	}

	query := `SELECT trade_date, symbol, strike, expiration, stock_trade_price, effective_delta,
		call_trade_price, call_action, call_qty, put_trade_price, put_action, put_qty,
		stock_close_price, call_close_price, put_close_price, daily_pnl, pct_change FROM trades`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY trade_date ASC, symbol ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	var rows []tradeRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}

	records := make([]models.TradeRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := r.model()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// ============================================================================
// Valuation Methods
// ============================================================================

type valuationRow struct {
	Symbol         string           `db:"symbol"`
	Date           string           `db:"date"`
	Expiration     string           `db:"expiration"`
	Strike         float64          `db:"strike"`
	StockPrice     float64          `db:"stock_price"`
	Volatility     float64          `db:"volatility"`
	CallPremium    models.NullFloat `db:"call_premium"`
	CallBid        models.NullFloat `db:"call_bid"`
	CallAsk        models.NullFloat `db:"call_ask"`
	CallModelPrice float64          `db:"call_model_price"`
	CallDelta      float64          `db:"call_delta"`
	CallImpliedVol models.NullFloat `db:"call_implied_vol"`
	CallVerdict    string           `db:"call_verdict"`
	PutPremium     models.NullFloat `db:"put_premium"`
	PutBid         models.NullFloat `db:"put_bid"`
	PutAsk         models.NullFloat `db:"put_ask"`
	PutModelPrice  float64          `db:"put_model_price"`
	PutDelta       float64          `db:"put_delta"`
	PutImpliedVol  models.NullFloat `db:"put_implied_vol"`
	PutVerdict     string           `db:"put_verdict"`
}

func toValuationRow(v models.Valuation) valuationRow {
	return valuationRow{
		Symbol:         v.Symbol,
		Date:           formatDay(v.Date),
		Expiration:     formatDay(v.Expiration),
		Strike:         v.Strike,
		StockPrice:     v.StockPrice,
		Volatility:     v.Volatility,
		CallPremium:    v.Call.Premium,
		CallBid:        v.Call.Bid,
		CallAsk:        v.Call.Ask,
		CallModelPrice: v.Call.ModelPrice,
		CallDelta:      v.Call.Delta,
		CallImpliedVol: v.Call.ImpliedVol,
		CallVerdict:    string(v.Call.Verdict),
		PutPremium:     v.Put.Premium,
		PutBid:         v.Put.Bid,
		PutAsk:         v.Put.Ask,
		PutModelPrice:  v.Put.ModelPrice,
		PutDelta:       v.Put.Delta,
		PutImpliedVol:  v.Put.ImpliedVol,
		PutVerdict:     string(v.Put.Verdict),
	}
}

func (r valuationRow) model() (models.Valuation, error) {
	date, err := models.ParseDay(r.Date)
	if err != nil {
		return models.Valuation{}, fmt.Errorf("date: %w", err)
	}
	expiration, err := models.ParseDay(r.Expiration)
	if err != nil {
		return models.Valuation{}, fmt.Errorf("expiration: %w", err)
	}
	return models.Valuation{
		Symbol:     r.Symbol,
		Date:       date,
		Expiration: expiration,
		Strike:     r.Strike,
		StockPrice: r.StockPrice,
		Volatility: r.Volatility,
		Call: models.LegValue{
			Premium:    r.CallPremium,
			Bid:        r.CallBid,
			Ask:        r.CallAsk,
			ModelPrice: r.CallModelPrice,
			Delta:      r.CallDelta,
			ImpliedVol: r.CallImpliedVol,
			Verdict:    models.Verdict(r.CallVerdict),
		},
		Put: models.LegValue{
			Premium:    r.PutPremium,
			Bid:        r.PutBid,
			Ask:        r.PutAsk,
			ModelPrice: r.PutModelPrice,
			Delta:      r.PutDelta,
			ImpliedVol: r.PutImpliedVol,
			Verdict:    models.Verdict(r.PutVerdict),
		},
	}, nil
}

// SaveValuation appends a valuation snapshot.
func (s *SQLiteStore) SaveValuation(ctx context.Context, v models.Valuation) (err error) {
	start := time.Now()
	defer func() { err = observe("save_valuation", "valuations", start, err) }()

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO valuations (symbol, date, expiration, strike, stock_price, volatility,
			call_premium, call_bid, call_ask, call_model_price, call_delta, call_implied_vol, call_verdict,
			put_premium, put_bid, put_ask, put_model_price, put_delta, put_implied_vol, put_verdict)
		VALUES (:symbol, :date, :expiration, :strike, :stock_price, :volatility,
			:call_premium, :call_bid, :call_ask, :call_model_price, :call_delta, :call_implied_vol, :call_verdict,
			:put_premium, :put_bid, :put_ask, :put_model_price, :put_delta, :put_implied_vol, :put_verdict)
	`, toValuationRow(v))
	if err != nil {
		return fmt.Errorf("failed to save valuation: %w", err)
	}
	return nil
}

// GetValuations retrieves valuation snapshots, newest first.
func (s *SQLiteStore) GetValuations(ctx context.Context, filter ValuationFilter) (_ []models.Valuation, err error) {
	start := time.Now()
	defer func() { err = observe("get_valuations", "valuations", start, err) }()

	query := `SELECT symbol, date, expiration, strike, stock_price, volatility,
		call_premium, call_bid, call_ask, call_model_price, call_delta, call_implied_vol, call_verdict,
		put_premium, put_bid, put_ask, put_model_price, put_delta, put_implied_vol, put_verdict
		FROM valuations WHERE 1=1`
	var args []interface{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if !filter.StartDate.IsZero() {
		query += " AND date >= ?"
		args = append(args, formatDay(filter.StartDate))
	}
	query += " ORDER BY date DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	var rows []valuationRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query valuations: %w", err)
	}

	out := make([]models.Valuation, 0, len(rows))
	for _, r := range rows {
		v, err := r.model()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ============================================================================
// Sync Methods
// ============================================================================

// GetLastSync returns the last sync time for a data type.
func (s *SQLiteStore) GetLastSync(dataType string) time.Time {
	s.mu.RLock()
	if t, ok := s.syncTimes[dataType]; ok {
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	var lastSync time.Time
	err := s.db.Get(&lastSync, `SELECT last_sync FROM sync_status WHERE data_type = ?`, dataType)
	if err != nil {
		return time.Time{}
	}

	s.mu.Lock()
	s.syncTimes[dataType] = lastSync
	s.mu.Unlock()

	return lastSync
}

// SetLastSync sets the last sync time for a data type.
func (s *SQLiteStore) SetLastSync(dataType string, t time.Time) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO sync_status (data_type, last_sync, updated_at)
		VALUES (?, ?, ?)
	`, dataType, t.UTC(), time.Now().UTC())
	if err != nil {
		return apperrors.NewStoreError("set_last_sync", "sync_status", err)
	}

	s.mu.Lock()
	s.syncTimes[dataType] = t
	s.mu.Unlock()

	return nil
}

func formatDay(t time.Time) string {
	return t.Format(models.DateLayout)
}

var _ DataStore = (*SQLiteStore)(nil)
