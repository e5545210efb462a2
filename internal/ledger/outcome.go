package ledger

import (
	"github.com/shopspring/decimal"

	"pair-trade-tracker-go/internal/models"
)

// Outcome summarizes a completed round trip: the net change in each side's
// quantity and the cash difference between what the close leg realized and
// what the open leg committed.
type Outcome struct {
	QtyAChange   decimal.Decimal `json:"qtyAChange"`
	QtyBChange   decimal.Decimal `json:"qtyBChange"`
	DollarChange decimal.Decimal `json:"dollarChange"`
}

// TradeOutcome computes the outcome of a closed round-trip trade. It uses the
// stored ToQty of each leg, so an outcome always reflects the quantities the
// trade actually recorded. Returns nil unless both legs are present.
func TradeOutcome(pair *models.Pair, trade *models.Trade) *Outcome {
	if trade == nil || !trade.IsClosed() {
		return nil
	}

	var qtyAChange, qtyBChange decimal.Decimal
	for _, leg := range [2]models.Leg{trade.Open, trade.Close} {
		if leg.FromTicker == pair.StockATicker {
			qtyAChange = qtyAChange.Sub(leg.SwapQty)
			qtyBChange = qtyBChange.Add(leg.ToQty)
		} else {
			qtyBChange = qtyBChange.Sub(leg.SwapQty)
			qtyAChange = qtyAChange.Add(leg.ToQty)
		}
	}

	valueIn := trade.Open.SwapQty.Mul(trade.Open.FromPrice)
	valueOut := trade.Close.SwapQty.Mul(trade.Close.FromPrice)

	return &Outcome{
		QtyAChange:   qtyAChange,
		QtyBChange:   qtyBChange,
		DollarChange: valueOut.Sub(valueIn),
	}
}
