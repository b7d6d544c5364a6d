// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"fmt"
	"time"

	"optionlab/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Positions
	SavePosition(ctx context.Context, pos *models.Position) error
	GetPosition(ctx context.Context, id int64) (models.Position, error)
	ListPositions(ctx context.Context) ([]models.Position, error)
	DeletePosition(ctx context.Context, id int64) error

	// Trade records
	UpsertTradeRecord(ctx context.Context, rec models.TradeRecord) (replaced bool, err error)
	UpsertTradeRecords(ctx context.Context, recs []models.TradeRecord) (UpsertResult, error)
	TradeRecords(ctx context.Context, filter TradeFilter) ([]models.TradeRecord, error)

	// Valuations
	SaveValuation(ctx context.Context, v models.Valuation) error
	GetValuations(ctx context.Context, filter ValuationFilter) ([]models.Valuation, error)

	// Sync
	GetLastSync(dataType string) time.Time
	SetLastSync(dataType string, t time.Time) error

	// Lifecycle
	Close() error
}

// UpsertResult counts the outcome of a batch upsert.
type UpsertResult struct {
	Inserted int
	Replaced int
	// ReplacedKeys lists the keys that overwrote an existing row.
	ReplacedKeys []models.TradeKey
}

// TradeFilter selects trade records. A non-nil Position restricts the
// result to that position's natural key columns.
type TradeFilter struct {
	Position  *models.Position
	Symbol    string
	StartDate time.Time
	EndDate   time.Time
	Limit     int
}

// ValuationFilter selects valuation snapshots.
type ValuationFilter struct {
	Symbol    string
	StartDate time.Time
	Limit     int
}

// RefreshSyncKey is the sync key recording a position's last refresh.
func RefreshSyncKey(positionID int64) string {
	return fmt.Sprintf("refresh:%d", positionID)
}
