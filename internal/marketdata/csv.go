package marketdata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	apperrors "optionlab/internal/errors"
	"optionlab/internal/models"
)

// CSVProvider serves market data from a directory of CSV files:
//
//	quotes.csv          symbol,price,change,pct_change
//	options.csv         contract,last,bid,ask,open_interest,volume
//	history/<ID>.csv    date,close   (ID is an OCC symbol or a ticker)
//
// Files are read on every call so that an external writer can refresh them.
type CSVProvider struct {
	dir string
	now func() time.Time
}

// NewCSVProvider creates a provider rooted at dir.
func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{dir: dir, now: time.Now}
}

type quoteRow struct {
	Symbol    string           `csv:"symbol"`
	Price     models.NullFloat `csv:"price"`
	Change    models.NullFloat `csv:"change"`
	PctChange models.NullFloat `csv:"pct_change"`
}

type optionRow struct {
	Contract     string           `csv:"contract"`
	Last         models.NullFloat `csv:"last"`
	Bid          models.NullFloat `csv:"bid"`
	Ask          models.NullFloat `csv:"ask"`
	OpenInterest string           `csv:"open_interest"`
	Volume       string           `csv:"volume"`
}

type closeRow struct {
	Date  string           `csv:"date"`
	Close models.NullFloat `csv:"close"`
}

func readCSV(path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gocsv.Unmarshal(f, out)
}

// writeCSV replaces path with rows. Errors from the final flush on close
// are returned, not dropped.
func writeCSV(path string, rows interface{}) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing %s: %w", filepath.Base(path), cerr)
		}
	}()
	if err := gocsv.MarshalFile(rows, f); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return f.Sync()
}

func (p *CSVProvider) missing(dataType, id string, err error) error {
	if os.IsNotExist(err) {
		return apperrors.MissingData(dataType, id, "no data file")
	}
	return apperrors.NewDataError(dataType, id, "reading data file", err)
}

// Quote implements Provider.
func (p *CSVProvider) Quote(ctx context.Context, symbol string) (models.StockQuote, error) {
	if err := ctx.Err(); err != nil {
		return models.StockQuote{}, err
	}
	var rows []quoteRow
	if err := readCSV(filepath.Join(p.dir, "quotes.csv"), &rows); err != nil {
		return models.StockQuote{}, p.missing("quote", symbol, err)
	}
	for _, r := range rows {
		if strings.EqualFold(strings.TrimSpace(r.Symbol), symbol) {
			if !r.Price.Valid {
				break
			}
			return models.StockQuote{
				Symbol:    strings.ToUpper(symbol),
				Price:     r.Price,
				Change:    r.Change,
				PctChange: r.PctChange,
				Timestamp: p.now(),
			}, nil
		}
	}
	return models.StockQuote{}, apperrors.MissingData("quote", symbol, "no price")
}

// OptionQuote implements Provider.
func (p *CSVProvider) OptionQuote(ctx context.Context, contractID string) (models.OptionQuote, error) {
	if err := ctx.Err(); err != nil {
		return models.OptionQuote{}, err
	}
	if _, err := ParseContractID(contractID); err != nil {
		return models.OptionQuote{}, err
	}
	var rows []optionRow
	if err := readCSV(filepath.Join(p.dir, "options.csv"), &rows); err != nil {
		return models.OptionQuote{}, p.missing("option_quote", contractID, err)
	}
	for _, r := range rows {
		if !strings.EqualFold(strings.TrimSpace(r.Contract), contractID) {
			continue
		}
		oi, err := parseCount(r.OpenInterest)
		if err != nil {
			return models.OptionQuote{}, apperrors.NewDataError("option_quote", contractID, "bad open_interest", err)
		}
		vol, err := parseCount(r.Volume)
		if err != nil {
			return models.OptionQuote{}, apperrors.NewDataError("option_quote", contractID, "bad volume", err)
		}
		return models.OptionQuote{
			ContractID:   strings.ToUpper(contractID),
			Last:         r.Last,
			Bid:          r.Bid,
			Ask:          r.Ask,
			OpenInterest: oi,
			Volume:       vol,
			Timestamp:    p.now(),
		}, nil
	}
	return models.OptionQuote{}, apperrors.MissingData("option_quote", contractID, "contract not quoted")
}

func parseCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "NA") {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// HistoricalCloses implements Provider.
func (p *CSVProvider) HistoricalCloses(ctx context.Context, contractID string, start time.Time) ([]models.Close, error) {
	if _, err := ParseContractID(contractID); err != nil {
		return nil, err
	}
	return p.history(ctx, contractID, start, time.Time{})
}

// UnderlyingHistory implements Provider.
func (p *CSVProvider) UnderlyingHistory(ctx context.Context, symbol string, start, end time.Time) ([]models.Close, error) {
	return p.history(ctx, symbol, start, end)
}

func (p *CSVProvider) history(ctx context.Context, id string, start, end time.Time) ([]models.Close, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id = strings.ToUpper(strings.TrimSpace(id))
	var rows []closeRow
	if err := readCSV(filepath.Join(p.dir, "history", id+".csv"), &rows); err != nil {
		return nil, p.missing("history", id, err)
	}

	start = models.Day(start)
	closes := make([]models.Close, 0, len(rows))
	for _, r := range rows {
		date, err := models.ParseDay(strings.TrimSpace(r.Date))
		if err != nil {
			return nil, apperrors.NewDataError("history", id, fmt.Sprintf("bad date %q", r.Date), err)
		}
		if !r.Close.Valid || date.Before(start) {
			continue
		}
		if !end.IsZero() && date.After(models.Day(end)) {
			continue
		}
		closes = append(closes, models.Close{Date: date, Close: r.Close.Float64})
	}
	sort.Slice(closes, func(i, j int) bool { return closes[i].Date.Before(closes[j].Date) })

	if len(closes) == 0 {
		return nil, apperrors.MissingData("history", id, "no closes in range")
	}
	return closes, nil
}

// WriteHistory writes closes as history/<id>.csv, replacing any existing file.
func (p *CSVProvider) WriteHistory(id string, closes []models.Close) error {
	dir := filepath.Join(p.dir, "history")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}
	rows := make([]closeRow, len(closes))
	for i, c := range closes {
		rows[i] = closeRow{Date: c.Date.Format(models.DateLayout), Close: models.Some(c.Close)}
	}
	return writeCSV(filepath.Join(dir, strings.ToUpper(id)+".csv"), &rows)
}
