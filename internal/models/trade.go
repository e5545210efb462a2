package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Trade status values. A trade record is a tagged variant: StatusOpen and
// StatusClosed are round-trip trades carrying an open leg (and a close leg once
// closed); StatusLegacy marks a pre-round-trip record whose single flat leg is
// stored in the open slot and is treated as read-only historical data.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
	StatusLegacy = "legacy"
)

// Leg is one executed swap: a quantity of FromTicker given up at FromPrice in
// exchange for ToTicker at ToPrice on a calendar date (YYYY-MM-DD).
//
// ToQty is derived, never entered: ToQty = FromPrice * SwapQty / ToPrice. It is
// recomputed whenever any of those three fields changes.
type Leg struct {
	Date       string          `gorm:"size:10" json:"date"`
	FromTicker string          `json:"fromTicker"`
	ToTicker   string          `json:"toTicker"`
	SwapQty    decimal.Decimal `gorm:"type:decimal(20,8)" json:"swapQty"`
	FromPrice  decimal.Decimal `gorm:"type:decimal(20,8)" json:"fromPrice"`
	ToPrice    decimal.Decimal `gorm:"type:decimal(20,8)" json:"toPrice"`
	ToQty      decimal.Decimal `gorm:"type:decimal(20,8)" json:"toQty"`
	Notes      string          `json:"notes"`
}

// HasPrices reports whether both leg prices are set and positive. Legs without
// prices exist in partially-filled legacy data and are replayed as no-ops.
func (l *Leg) HasPrices() bool {
	return l.FromPrice.IsPositive() && l.ToPrice.IsPositive()
}

// DerivedToQty recomputes the received quantity from the leg's own fields.
func (l *Leg) DerivedToQty() decimal.Decimal {
	if !l.ToPrice.IsPositive() {
		return decimal.Zero
	}
	return l.FromPrice.Mul(l.SwapQty).Div(l.ToPrice)
}

// Trade is one round-trip swap between the pair's two assets: an open leg and,
// once the position is exited, a close leg swapping back the other way.
type Trade struct {
	gorm.Model
	PairID uint   `gorm:"index;not null" json:"pairId"`
	Status string `gorm:"not null;default:open" json:"status"`
	Open   Leg    `gorm:"embedded;embeddedPrefix:open_" json:"open"`
	Close  Leg    `gorm:"embedded;embeddedPrefix:close_" json:"close"`
}

// IsClosed reports whether the trade's close leg has been executed.
func (t *Trade) IsClosed() bool { return t.Status == StatusClosed }

// IsLegacy reports whether this is a flat single-leg record from the old format.
func (t *Trade) IsLegacy() bool { return t.Status == StatusLegacy }

// OpenDate returns the date the trade entered the ledger: the open leg's date,
// which for legacy records is the flat leg's date.
func (t *Trade) OpenDate() string { return t.Open.Date }

// ActiveLegs returns the legs that contribute to holdings, in execution order.
func (t *Trade) ActiveLegs() []Leg {
	if t.IsClosed() {
		return []Leg{t.Open, t.Close}
	}
	return []Leg{t.Open}
}

// Leg returns a pointer to the requested leg, or nil when the trade has no such
// leg (close leg of an open trade, either leg name on a legacy record's close).
func (t *Trade) Leg(legType string) *Leg {
	switch legType {
	case "open":
		return &t.Open
	case "close":
		if t.IsClosed() {
			return &t.Close
		}
	}
	return nil
}
