package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Pair is one configured trading pair: two tickers that are swapped back and
// forth, plus the holdings baseline the ledger replays from.
type Pair struct {
	gorm.Model
	PairName         string          `gorm:"uniqueIndex;not null" json:"pairName"`
	StockATicker     string          `gorm:"not null" json:"stockATicker"`
	StockBTicker     string          `gorm:"not null" json:"stockBTicker"`
	StockAInitialQty decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"stockAInitialQty"`
	StockBInitialQty decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"stockBInitialQty"`
}

// HasTicker reports whether ticker is one of the pair's two symbols.
func (p *Pair) HasTicker(ticker string) bool {
	return ticker == p.StockATicker || ticker == p.StockBTicker
}

// OtherTicker returns the pair's symbol opposite to ticker.
// It returns the A side for any unknown input.
func (p *Pair) OtherTicker(ticker string) string {
	if ticker == p.StockATicker {
		return p.StockBTicker
	}
	return p.StockATicker
}
