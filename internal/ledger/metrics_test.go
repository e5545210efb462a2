package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pair-trade-tracker-go/internal/models"
)

func TestPerformanceMetrics_NoTrades(t *testing.T) {
	assert.Nil(t, PerformanceMetrics(testPair(), nil))
}

func TestPerformanceMetrics_SingleOpenTrade(t *testing.T) {
	pair := testPair()
	trades := []models.Trade{
		openTrade(1, leg("2024-01-02", "AAA", "BBB", "50", "10", "20")),
	}

	m := PerformanceMetrics(pair, trades)

	// Initial: 100@10 + 100@20 = 3000. Only one price point exists, so the
	// current valuation reprices the replayed holdings (50 AAA, 125 BBB) at
	// the same prices: 50*10 + 125*20 = 3000.
	assert.NotNil(t, m)
	assert.True(t, m.Initial.TotalValue.Equal(d("3000")), "initial = %s", m.Initial.TotalValue)
	assert.True(t, m.Current.TotalValue.Equal(d("3000")), "current = %s", m.Current.TotalValue)
	assert.True(t, m.TotalPL.IsZero(), "P/L = %s", m.TotalPL)
	assert.True(t, m.PercentageGain.IsZero())
}

func TestPerformanceMetrics_UsesLastCloseLegPrices(t *testing.T) {
	pair := testPair()
	trades := []models.Trade{
		closedTrade(1,
			leg("2024-01-02", "AAA", "BBB", "50", "10", "20"),
			leg("2024-02-02", "BBB", "AAA", "25", "30", "15"),
		),
	}

	m := PerformanceMetrics(pair, trades)

	// Holdings after the round trip: 50 AAA +25*30/15 = 100 AAA, 100 BBB.
	// Initial priced at the open leg (10, 20) = 3000; current priced at the
	// close leg (A=15, B=30) = 100*15 + 100*30 = 4500.
	assert.NotNil(t, m)
	assert.True(t, m.Initial.TotalValue.Equal(d("3000")), "initial = %s", m.Initial.TotalValue)
	assert.True(t, m.Current.TotalValue.Equal(d("4500")), "current = %s", m.Current.TotalValue)
	assert.True(t, m.TotalPL.Equal(d("1500")), "P/L = %s", m.TotalPL)
	assert.True(t, m.PercentageGain.Equal(d("50")), "gain = %s%%", m.PercentageGain)
}

func TestPerformanceMetrics_LastOpenTradeFallsBackToOpenLeg(t *testing.T) {
	pair := testPair()
	trades := []models.Trade{
		closedTrade(1,
			leg("2024-01-02", "AAA", "BBB", "50", "10", "20"),
			leg("2024-02-02", "BBB", "AAA", "25", "20", "10"),
		),
		openTrade(2, leg("2024-03-02", "AAA", "BBB", "50", "12", "24")),
	}

	m := PerformanceMetrics(pair, trades)

	// Current prices come from trade 2's open leg (A=12, B=24). Holdings after
	// trade 2: 50 AAA, 125 BBB. Current = 50*12 + 125*24 = 3600.
	assert.NotNil(t, m)
	assert.True(t, m.Current.TotalValue.Equal(d("3600")), "current = %s", m.Current.TotalValue)
	assert.True(t, m.TotalPL.Equal(d("600")), "P/L = %s", m.TotalPL)
	assert.True(t, m.PercentageGain.Equal(d("20")), "gain = %s%%", m.PercentageGain)
}

func TestPerformanceMetrics_ZeroInitialValue(t *testing.T) {
	pair := &models.Pair{
		PairName:     "AAA/BBB",
		StockATicker: "AAA",
		StockBTicker: "BBB",
		// Both initial quantities zero: percentage gain has no base.
	}
	trades := []models.Trade{
		legacyTrade(1, models.Leg{Date: "2020-05-01", FromTicker: "AAA", ToTicker: "BBB"}),
	}

	m := PerformanceMetrics(pair, trades)

	assert.NotNil(t, m)
	assert.True(t, m.PercentageGain.IsZero())
}
