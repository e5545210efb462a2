// Package csvio flattens a pair's trade log to CSV and reads it back. Each
// round-trip trade becomes one row per leg; the open and close rows of a trade
// share the trade ID in the first column.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pair-trade-tracker-go/internal/ledger"
	"pair-trade-tracker-go/internal/models"
)

// Header is the column layout of an exported trade log.
var Header = []string{
	"Trade ID", "Leg", "Date", "From Ticker", "From Qty",
	"From Price", "To Ticker", "To Qty", "To Price", "Notes",
}

func legRow(tradeID uint, legType string, leg models.Leg) []string {
	return []string{
		fmt.Sprintf("%d", tradeID),
		legType,
		leg.Date,
		leg.FromTicker,
		leg.SwapQty.String(),
		leg.FromPrice.String(),
		leg.ToTicker,
		leg.ToQty.StringFixed(8),
		leg.ToPrice.String(),
		leg.Notes,
	}
}

// Export writes the trades as CSV, one row per leg, in the order given.
// Legacy flat records export as a single open row.
func Export(w io.Writer, trades []models.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range trades {
		if err := cw.Write(legRow(t.ID, string(ledger.LegOpen), t.Open)); err != nil {
			return fmt.Errorf("write trade %d: %w", t.ID, err)
		}
		if t.IsClosed() {
			if err := cw.Write(legRow(t.ID, string(ledger.LegClose), t.Close)); err != nil {
				return fmt.Errorf("write trade %d: %w", t.ID, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFilename builds the download name for a pair's export, for example
// "260831--AAA-BBB-SWAP-DB.csv".
func ExportFilename(pairName string, now time.Time) string {
	safe := strings.ReplaceAll(pairName, "/", "-")
	return fmt.Sprintf("%s--%s-SWAP-DB.csv", now.Format("060102"), safe)
}

// ImportOptions controls how Import treats incoming rows.
type ImportOptions struct {
	// SkipValidation restores rows without replaying them against holdings.
	// Intended for re-importing a known-good export; new data should leave it
	// off so the no-negative-holdings rule holds for imported trades too.
	SkipValidation bool
}

// RowError records why one CSV row group was rejected.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ImportResult is the outcome of parsing and validating an import file.
type ImportResult struct {
	// Trades are the accepted trades, ready for bulk insertion. IDs are unset;
	// the file's trade IDs only group open and close rows.
	Trades []models.Trade
	// Rejected lists the rows that failed parsing or holdings validation.
	Rejected []RowError
}

func parseLeg(record []string) (models.Leg, error) {
	swapQty, err := decimal.NewFromString(record[4])
	if err != nil {
		return models.Leg{}, fmt.Errorf("bad from qty %q", record[4])
	}
	fromPrice, err := decimal.NewFromString(record[5])
	if err != nil {
		return models.Leg{}, fmt.Errorf("bad from price %q", record[5])
	}
	toPrice, err := decimal.NewFromString(record[8])
	if err != nil {
		return models.Leg{}, fmt.Errorf("bad to price %q", record[8])
	}
	leg := models.Leg{
		Date:       record[2],
		FromTicker: strings.ToUpper(strings.TrimSpace(record[3])),
		ToTicker:   strings.ToUpper(strings.TrimSpace(record[6])),
		SwapQty:    swapQty,
		FromPrice:  fromPrice,
		ToPrice:    toPrice,
		Notes:      record[9],
	}
	// The To Qty column is ignored: it is derived, and deriving it again keeps
	// imported legs consistent with edited ones.
	leg.ToQty = leg.DerivedToQty()
	return leg, nil
}

// Import reads an exported trade log back into trades for the given pair,
// grouping open and close rows by the file's trade ID. Unless opts skips it,
// each trade is replayed against the pair's holdings (existing trades plus the
// rows accepted so far) and rejected rows are reported, not inserted.
func Import(r io.Reader, pair *models.Pair, existing []models.Trade, opts ImportOptions) (*ImportResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return &ImportResult{}, nil
	}
	if records[0][0] == Header[0] {
		records = records[1:]
	}

	result := &ImportResult{}
	reject := func(row int, format string, args ...any) {
		result.Rejected = append(result.Rejected, RowError{Row: row, Reason: fmt.Sprintf(format, args...)})
	}

	// openRows maps the file's trade ID to the index in result.Trades of the
	// open row waiting for its close.
	openRows := make(map[string]int)
	accepted := append([]models.Trade{}, existing...)

	for i, record := range records {
		row := i + 2 // 1-based, after the header
		legType := strings.ToLower(strings.TrimSpace(record[1]))
		leg, err := parseLeg(record)
		if err != nil {
			reject(row, "%v", err)
			continue
		}

		switch legType {
		case string(ledger.LegOpen):
			trade := models.Trade{
				PairID: pair.ID,
				Status: models.StatusOpen,
				Open:   leg,
			}
			if !opts.SkipValidation {
				if err := ledger.ValidateTradeAppend(pair, accepted, trade); err != nil {
					reject(row, "%v", err)
					continue
				}
			}
			openRows[record[0]] = len(result.Trades)
			result.Trades = append(result.Trades, trade)
			accepted = append(accepted, trade)

		case string(ledger.LegClose):
			idx, ok := openRows[record[0]]
			if !ok {
				reject(row, "close row without a matching open row for trade %s", record[0])
				continue
			}
			closed := result.Trades[idx]
			closed.Status = models.StatusClosed
			closed.Close = leg
			if !opts.SkipValidation {
				// Revalidate the whole round trip with its predecessors, the
				// open leg having already been accepted.
				before := append([]models.Trade{}, existing...)
				for j, t := range result.Trades {
					if j != idx {
						before = append(before, t)
					}
				}
				if err := ledger.ValidateTradeAppend(pair, before, closed); err != nil {
					reject(row, "%v", err)
					continue
				}
			}
			result.Trades[idx] = closed
			accepted[len(existing)+idx] = closed
			delete(openRows, record[0])

		default:
			reject(row, "unknown leg type %q", record[1])
		}
	}

	return result, nil
}
