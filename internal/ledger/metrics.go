package ledger

import (
	"github.com/shopspring/decimal"

	"pair-trade-tracker-go/internal/models"
)

// Valuation is a holdings snapshot priced per side.
type Valuation struct {
	QtyA       decimal.Decimal `json:"qtyA"`
	QtyB       decimal.Decimal `json:"qtyB"`
	ValueA     decimal.Decimal `json:"valueA"`
	ValueB     decimal.Decimal `json:"valueB"`
	TotalValue decimal.Decimal `json:"totalValue"`
}

// Metrics is the pair's performance derived purely from stored trade prices:
// the valuation at the first trade versus the valuation implied by the last
// one, with no live price feed involved.
type Metrics struct {
	Initial        Valuation       `json:"initial"`
	Current        Valuation       `json:"current"`
	TotalPL        decimal.Decimal `json:"totalPL"`
	PercentageGain decimal.Decimal `json:"percentageGain"`
}

// legPrices orients a leg's two prices onto the pair's A and B sides.
func legPrices(pair *models.Pair, leg models.Leg) (priceA, priceB decimal.Decimal) {
	if leg.FromTicker == pair.StockATicker {
		return leg.FromPrice, leg.ToPrice
	}
	return leg.ToPrice, leg.FromPrice
}

func valuate(qtyA, qtyB, priceA, priceB decimal.Decimal) Valuation {
	valueA := qtyA.Mul(priceA)
	valueB := qtyB.Mul(priceB)
	return Valuation{
		QtyA:       qtyA,
		QtyB:       qtyB,
		ValueA:     valueA,
		ValueB:     valueB,
		TotalValue: valueA.Add(valueB),
	}
}

// PerformanceMetrics derives initial and current valuations and P/L for a
// pair. The first trade's open leg establishes the initial per-share prices,
// combined with the pair's initial quantities; the last trade's close leg
// (falling back to its open leg) establishes the current prices, combined with
// the final replayed holdings. Returns nil when no trades have been logged.
func PerformanceMetrics(pair *models.Pair, trades []models.Trade) *Metrics {
	if len(trades) == 0 {
		return nil
	}

	firstPriceA, firstPriceB := legPrices(pair, trades[0].Open)
	initial := valuate(pair.StockAInitialQty, pair.StockBInitialQty, firstPriceA, firstPriceB)

	last := trades[len(trades)-1]
	lastLeg := last.Open
	if last.IsClosed() {
		lastLeg = last.Close
	}
	lastPriceA, lastPriceB := legPrices(pair, lastLeg)

	final := FinalHoldings(pair, trades)
	current := valuate(final.QtyA, final.QtyB, lastPriceA, lastPriceB)

	totalPL := current.TotalValue.Sub(initial.TotalValue)
	percentageGain := decimal.Zero
	if initial.TotalValue.IsPositive() {
		percentageGain = totalPL.Div(initial.TotalValue).Mul(decimal.NewFromInt(100))
	}

	return &Metrics{
		Initial:        initial,
		Current:        current,
		TotalPL:        totalPL,
		PercentageGain: percentageGain,
	}
}
