package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pair-trade-tracker-go/internal/models"
)

// LegType names which leg of a round-trip trade an operation targets.
type LegType string

const (
	LegOpen  LegType = "open"
	LegClose LegType = "close"
)

// LegField names an editable field of a leg.
type LegField string

const (
	FieldDate       LegField = "date"
	FieldFromTicker LegField = "fromTicker"
	FieldSwapQty    LegField = "swapQty"
	FieldFromPrice  LegField = "fromPrice"
	FieldToPrice    LegField = "toPrice"
	FieldNotes      LegField = "notes"
)

const dateLayout = "2006-01-02"

// NewTradeInput carries the user-entered fields for a new open leg. ToTicker
// and ToQty are not part of the input: both are derived.
type NewTradeInput struct {
	Date       string
	FromTicker string
	SwapQty    decimal.Decimal
	FromPrice  decimal.Decimal
	ToPrice    decimal.Decimal
	Notes      string
}

// ValidateNewTrade checks a proposed open leg against the pair's reconstructed
// holdings and returns the completed leg with ToTicker and ToQty derived.
//
// A swap quantity exactly equal to the current holding is legal: fully
// liquidating one side is an ordinary trade. Only a quantity strictly greater
// than the holding is rejected.
func ValidateNewTrade(pair *models.Pair, existing []models.Trade, in NewTradeInput, allowFractional bool) (*models.Leg, error) {
	if _, err := time.Parse(dateLayout, in.Date); err != nil {
		return nil, Validationf("date must be a valid YYYY-MM-DD date")
	}
	if !pair.HasTicker(in.FromTicker) {
		return nil, Validationf("ticker %q is not part of pair %s", in.FromTicker, pair.PairName)
	}
	if !in.SwapQty.IsPositive() || !in.FromPrice.IsPositive() || !in.ToPrice.IsPositive() {
		return nil, Validationf("quantity and prices must be positive numbers")
	}

	swapQty := in.SwapQty
	if !allowFractional {
		swapQty = swapQty.Floor()
		if !swapQty.IsPositive() {
			return nil, Validationf("quantity must be at least one whole share")
		}
	}

	before := FinalHoldings(pair, existing)
	if held := before.holdingFor(pair, in.FromTicker); swapQty.GreaterThan(held) {
		return nil, Validationf("swap quantity (%s) cannot exceed current holding of %s (%s)",
			swapQty.String(), in.FromTicker, held.String())
	}

	leg := &models.Leg{
		Date:       in.Date,
		FromTicker: in.FromTicker,
		ToTicker:   pair.OtherTicker(in.FromTicker),
		SwapQty:    swapQty,
		FromPrice:  in.FromPrice,
		ToPrice:    in.ToPrice,
		Notes:      in.Notes,
	}
	leg.ToQty = leg.DerivedToQty()
	return leg, nil
}

// holdingsBeforeLeg reconstructs holdings as of immediately before the given
// leg of trades[idx] executed. For an open leg that is every trade strictly
// before it. For a close leg the trade's own open leg has already been spent,
// so it is replayed too, with the close leg masked out.
func holdingsBeforeLeg(pair *models.Pair, trades []models.Trade, idx int, legType LegType) Holdings {
	prefix := trades[:idx]
	if legType != LegClose {
		return FinalHoldings(pair, prefix)
	}
	openOnly := trades[idx]
	openOnly.Status = models.StatusOpen
	withOpen := make([]models.Trade, 0, idx+1)
	withOpen = append(withOpen, prefix...)
	withOpen = append(withOpen, openOnly)
	return FinalHoldings(pair, withOpen)
}

// ValidateLegEdit checks an in-place edit of one field of one leg and returns
// the sanitized value to store. Numeric inputs may carry display formatting
// ("$1,234.50"); it is stripped before parsing. The edited leg's source ticker
// and quantity are validated against the holdings that existed at the point in
// history the leg executed, the same way a new trade is validated.
func ValidateLegEdit(pair *models.Pair, all []models.Trade, tradeID uint, legType LegType, field LegField, newValue string) (string, error) {
	idx := -1
	for i := range all {
		if all[i].ID == tradeID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return "", Validationf("could not find the trade to validate against")
	}
	trade := all[idx]
	if trade.IsLegacy() {
		return "", Validationf("legacy trades are read-only")
	}
	leg := trade.Leg(string(legType))
	if leg == nil {
		return "", Validationf("trade %d has no %s leg", tradeID, legType)
	}

	if field == FieldNotes {
		return newValue, nil
	}

	sanitized := strings.TrimSpace(newValue)
	switch field {
	case FieldFromPrice, FieldToPrice:
		sanitized = strings.NewReplacer("$", "", ",", "").Replace(sanitized)
	case FieldSwapQty:
		sanitized = strings.ReplaceAll(sanitized, ",", "")
	}

	switch field {
	case FieldSwapQty, FieldFromPrice, FieldToPrice:
		v, err := decimal.NewFromString(sanitized)
		if err != nil || !v.IsPositive() {
			return "", Validationf("price and quantity must be positive numbers")
		}
	case FieldDate:
		if _, err := time.Parse(dateLayout, sanitized); err != nil {
			return "", Validationf("date must be a valid YYYY-MM-DD date")
		}
	case FieldFromTicker:
		if !pair.HasTicker(sanitized) {
			return "", Validationf("ticker %q is not part of pair %s", sanitized, pair.PairName)
		}
	}

	before := holdingsBeforeLeg(pair, all, idx, legType)

	fromTicker := leg.FromTicker
	if field == FieldFromTicker {
		fromTicker = sanitized
	}
	swapQty := leg.SwapQty
	if field == FieldSwapQty {
		swapQty, _ = decimal.NewFromString(sanitized)
	}
	if held := before.holdingFor(pair, fromTicker); swapQty.GreaterThan(held) {
		return "", Validationf("swap quantity exceeds holdings for %s at that time", fromTicker)
	}

	return sanitized, nil
}

// ValidateTradeAppend checks a fully-formed trade, both legs, as if it were
// appended after existing. Bulk ingestion (CSV import) funnels through this so
// imported rows honor the same no-negative-holdings rule as the trade form.
func ValidateTradeAppend(pair *models.Pair, existing []models.Trade, trade models.Trade) error {
	legs := trade.ActiveLegs()
	for i, leg := range legs {
		if !pair.HasTicker(leg.FromTicker) || !pair.HasTicker(leg.ToTicker) {
			return Validationf("tickers %s>%s are not part of pair %s", leg.FromTicker, leg.ToTicker, pair.PairName)
		}
		if !leg.SwapQty.IsPositive() || !leg.FromPrice.IsPositive() || !leg.ToPrice.IsPositive() {
			return Validationf("quantity and prices must be positive numbers")
		}

		var before Holdings
		if i == 0 {
			before = FinalHoldings(pair, existing)
		} else {
			withOpen := append(append([]models.Trade{}, existing...), trade)
			before = holdingsBeforeLeg(pair, withOpen, len(existing), LegClose)
		}
		if held := before.holdingFor(pair, leg.FromTicker); leg.SwapQty.GreaterThan(held) {
			return Validationf("swap quantity (%s) exceeds holdings of %s (%s) at that point",
				leg.SwapQty.String(), leg.FromTicker, held.String())
		}
	}
	return nil
}

// ApplyLegEdit writes a validated value into the leg, carrying the contract's
// side effects: changing the source ticker flips the destination ticker to the
// pair's other symbol, and changing quantity or either price recomputes ToQty.
func ApplyLegEdit(pair *models.Pair, leg *models.Leg, field LegField, sanitized string) {
	switch field {
	case FieldDate:
		leg.Date = sanitized
	case FieldNotes:
		leg.Notes = sanitized
	case FieldFromTicker:
		leg.FromTicker = sanitized
		leg.ToTicker = pair.OtherTicker(sanitized)
	case FieldSwapQty:
		leg.SwapQty, _ = decimal.NewFromString(sanitized)
	case FieldFromPrice:
		leg.FromPrice, _ = decimal.NewFromString(sanitized)
	case FieldToPrice:
		leg.ToPrice, _ = decimal.NewFromString(sanitized)
	}
	switch field {
	case FieldSwapQty, FieldFromPrice, FieldToPrice:
		leg.ToQty = leg.DerivedToQty()
	}
}
