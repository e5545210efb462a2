package ledger

import (
	"github.com/shopspring/decimal"

	"pair-trade-tracker-go/internal/models"
)

// Holdings is the quantity held of each side of a pair after replaying some
// prefix of its trade history.
type Holdings struct {
	QtyA decimal.Decimal `json:"qtyA"`
	QtyB decimal.Decimal `json:"qtyB"`
}

// applyLeg folds one executed swap into the running holdings. Legs with a zero
// or missing price are skipped so that partially-filled legacy records replay
// as no-ops instead of corrupting the series.
func applyLeg(h Holdings, pair *models.Pair, leg models.Leg) Holdings {
	if !leg.HasPrices() {
		return h
	}
	ratio := leg.FromPrice.Div(leg.ToPrice)
	received := leg.SwapQty.Mul(ratio)
	if leg.FromTicker == pair.StockATicker {
		h.QtyA = h.QtyA.Sub(leg.SwapQty)
		h.QtyB = h.QtyB.Add(received)
	} else {
		h.QtyB = h.QtyB.Sub(leg.SwapQty)
		h.QtyA = h.QtyA.Add(received)
	}
	return h
}

// Replay reconstructs the holdings time series for a pair by applying each
// trade's legs in order, starting from the pair's initial quantities. The
// result has one snapshot per trade, aligned by index with the input; legacy
// records contribute their single flat leg, round-trip trades their open leg
// followed by the close leg when present.
//
// Replay is pure: it never touches storage and identical inputs always yield
// identical output.
func Replay(pair *models.Pair, trades []models.Trade) []Holdings {
	history := make([]Holdings, 0, len(trades))
	h := Holdings{QtyA: pair.StockAInitialQty, QtyB: pair.StockBInitialQty}
	for _, t := range trades {
		for _, leg := range t.ActiveLegs() {
			h = applyLeg(h, pair, leg)
		}
		history = append(history, h)
	}
	return history
}

// FinalHoldings returns the holdings after the whole trade sequence, or the
// pair's initial quantities when no trades have been logged.
func FinalHoldings(pair *models.Pair, trades []models.Trade) Holdings {
	if len(trades) == 0 {
		return Holdings{QtyA: pair.StockAInitialQty, QtyB: pair.StockBInitialQty}
	}
	history := Replay(pair, trades)
	return history[len(history)-1]
}

// holdingFor returns the held quantity of the given ticker side.
func (h Holdings) holdingFor(pair *models.Pair, ticker string) decimal.Decimal {
	if ticker == pair.StockATicker {
		return h.QtyA
	}
	return h.QtyB
}
