package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"pair-trade-tracker-go/internal/models"
)

func setupService(t *testing.T) *Service {
	return NewService(setupStore(t), zap.NewNop(), false)
}

// confirmRecorder is a ConfirmFunc that records whether it was asked and
// answers with a fixed response.
type confirmRecorder struct {
	asked   bool
	message string
	answer  bool
}

func (c *confirmRecorder) confirm(message string) bool {
	c.asked = true
	c.message = message
	return c.answer
}

func seedPair(t *testing.T, svc *Service) *models.Pair {
	pair, err := svc.CreatePair(context.Background(), PairInput{
		PairName:         "AAA/BBB",
		StockATicker:     "AAA",
		StockBTicker:     "BBB",
		StockAInitialQty: d("100"),
		StockBInitialQty: d("100"),
	})
	assert.NoError(t, err)
	return pair
}

func TestService_CreatePair(t *testing.T) {
	svc := setupService(t)

	testCases := []struct {
		name        string
		input       PairInput
		expectError bool
	}{
		{
			name:  "Valid pair",
			input: PairInput{PairName: "aaa/bbb", StockATicker: "aaa", StockBTicker: "bbb", StockAInitialQty: d("100.9"), StockBInitialQty: d("50")},
		},
		{
			name:        "Duplicate name after normalization",
			input:       PairInput{PairName: " AAA/BBB ", StockATicker: "AAA", StockBTicker: "BBB", StockAInitialQty: d("1"), StockBInitialQty: d("1")},
			expectError: true,
		},
		{
			name:        "Identical tickers",
			input:       PairInput{PairName: "XXX/XXX", StockATicker: "XXX", StockBTicker: "xxx", StockAInitialQty: d("1"), StockBInitialQty: d("1")},
			expectError: true,
		},
		{
			name:        "Missing ticker",
			input:       PairInput{PairName: "YYY/ZZZ", StockATicker: "YYY", StockAInitialQty: d("1"), StockBInitialQty: d("1")},
			expectError: true,
		},
		{
			name:        "Negative initial quantity",
			input:       PairInput{PairName: "CCC/DDD", StockATicker: "CCC", StockBTicker: "DDD", StockAInitialQty: d("-1"), StockBInitialQty: d("1")},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pair, err := svc.CreatePair(context.Background(), tc.input)

			if tc.expectError {
				var validationErr *ValidationError
				assert.ErrorAs(t, err, &validationErr)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, "AAA/BBB", pair.PairName)
				assert.Equal(t, "AAA", pair.StockATicker)
				// Whole-share mode floors the fractional input.
				assert.True(t, pair.StockAInitialQty.Equal(d("100")))
			}
		})
	}
}

func TestService_LogTrade(t *testing.T) {
	svc := setupService(t)
	pair := seedPair(t, svc)
	ctx := context.Background()

	trade, err := svc.LogTrade(ctx, pair.ID, NewTradeInput{
		Date: "2024-01-02", FromTicker: "AAA", SwapQty: d("50"), FromPrice: d("10"), ToPrice: d("20"),
	})

	assert.NoError(t, err)
	assert.Equal(t, models.StatusOpen, trade.Status)
	assert.Equal(t, "BBB", trade.Open.ToTicker)
	assert.True(t, trade.Open.ToQty.Equal(d("25")))

	// The second trade is validated against the replayed holdings, not the
	// initial quantities: only 50 AAA remain.
	_, err = svc.LogTrade(ctx, pair.ID, NewTradeInput{
		Date: "2024-01-09", FromTicker: "AAA", SwapQty: d("60"), FromPrice: d("10"), ToPrice: d("20"),
	})
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestService_LogTradeUnknownPair(t *testing.T) {
	svc := setupService(t)

	_, err := svc.LogTrade(context.Background(), 42, NewTradeInput{
		Date: "2024-01-02", FromTicker: "AAA", SwapQty: d("1"), FromPrice: d("10"), ToPrice: d("20"),
	})

	var integrityErr *IntegrityError
	assert.ErrorAs(t, err, &integrityErr)
}

func TestService_CloseTrade(t *testing.T) {
	svc := setupService(t)
	pair := seedPair(t, svc)
	ctx := context.Background()

	trade, err := svc.LogTrade(ctx, pair.ID, NewTradeInput{
		Date: "2024-01-02", FromTicker: "AAA", SwapQty: d("50"), FromPrice: d("10"), ToPrice: d("20"),
	})
	assert.NoError(t, err)

	closed, err := svc.CloseTrade(ctx, pair.ID, trade.ID, CloseTradeInput{
		Date: "2024-02-02", SwapQty: d("25"), FromPrice: d("20"), ToPrice: d("10"),
	})

	assert.NoError(t, err)
	assert.True(t, closed.IsClosed())
	// The close always swaps back toward the open leg's source.
	assert.Equal(t, "BBB", closed.Close.FromTicker)
	assert.Equal(t, "AAA", closed.Close.ToTicker)
	assert.True(t, closed.Close.ToQty.Equal(d("50")))

	_, err = svc.CloseTrade(ctx, pair.ID, trade.ID, CloseTradeInput{
		Date: "2024-03-02", SwapQty: d("1"), FromPrice: d("20"), ToPrice: d("10"),
	})
	assert.Error(t, err, "closing twice must be rejected")
}

func TestService_CloseTradeOverdraw(t *testing.T) {
	svc := setupService(t)
	pair := seedPair(t, svc)
	ctx := context.Background()

	trade, err := svc.LogTrade(ctx, pair.ID, NewTradeInput{
		Date: "2024-01-02", FromTicker: "AAA", SwapQty: d("50"), FromPrice: d("10"), ToPrice: d("20"),
	})
	assert.NoError(t, err)

	// Holdings of BBB after the open leg: 100 + 25 = 125.
	_, err = svc.CloseTrade(ctx, pair.ID, trade.ID, CloseTradeInput{
		Date: "2024-02-02", SwapQty: d("126"), FromPrice: d("20"), ToPrice: d("10"),
	})

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestService_UpdateLeg_NonHistoricNeedsNoConfirmation(t *testing.T) {
	svc := setupService(t)
	pair := seedPair(t, svc)
	ctx := context.Background()

	trade, err := svc.LogTrade(ctx, pair.ID, NewTradeInput{
		Date: "2024-01-02", FromTicker: "AAA", SwapQty: d("50"), FromPrice: d("10"), ToPrice: d("20"),
	})
	assert.NoError(t, err)

	rec := &confirmRecorder{answer: false}
	updated, err := svc.UpdateLeg(ctx, pair.ID, trade.ID, LegOpen, FieldNotes, "entry note", rec.confirm)

	assert.NoError(t, err)
	assert.False(t, rec.asked, "editing the newest open trade must not ask for confirmation")
	assert.Equal(t, "entry note", updated.Open.Notes)
}

func TestService_UpdateLeg_HistoricEditConfirmFlow(t *testing.T) {
	svc := setupService(t)
	pair := seedPair(t, svc)
	ctx := context.Background()

	first, err := svc.LogTrade(ctx, pair.ID, NewTradeInput{
		Date: "2024-01-02", FromTicker: "AAA", SwapQty: d("50"), FromPrice: d("10"), ToPrice: d("20"),
	})
	assert.NoError(t, err)
	_, err = svc.LogTrade(ctx, pair.ID, NewTradeInput{
		Date: "2024-02-02", FromTicker: "BBB", SwapQty: d("25"), FromPrice: d("20"), ToPrice: d("10"),
	})
	assert.NoError(t, err)

	// Declined: nothing is written.
	rec := &confirmRecorder{answer: false}
	_, err = svc.UpdateLeg(ctx, pair.ID, first.ID, LegOpen, FieldSwapQty, "40", rec.confirm)

	assert.ErrorIs(t, err, ErrDeclined)
	assert.True(t, rec.asked)
	assert.Equal(t, HistoricEditMessage, rec.message)

	stored, err := svc.Store().GetTrade(ctx, first.ID)
	assert.NoError(t, err)
	assert.True(t, stored.Open.SwapQty.Equal(d("50")), "declined edit must leave the trade untouched")

	// Confirmed: the edit applies and ToQty is recomputed.
	updated, err := svc.UpdateLeg(ctx, pair.ID, first.ID, LegOpen, FieldSwapQty, "40", (&confirmRecorder{answer: true}).confirm)
	assert.NoError(t, err)
	assert.True(t, updated.Open.SwapQty.Equal(d("40")))
	assert.True(t, updated.Open.ToQty.Equal(d("20")))
}

func TestService_DeleteTrade_HistoricConfirmFlow(t *testing.T) {
	svc := setupService(t)
	pair := seedPair(t, svc)
	ctx := context.Background()

	first, err := svc.LogTrade(ctx, pair.ID, NewTradeInput{
		Date: "2024-01-02", FromTicker: "AAA", SwapQty: d("10"), FromPrice: d("10"), ToPrice: d("20"),
	})
	assert.NoError(t, err)
	last, err := svc.LogTrade(ctx, pair.ID, NewTradeInput{
		Date: "2024-02-02", FromTicker: "AAA", SwapQty: d("10"), FromPrice: d("10"), ToPrice: d("20"),
	})
	assert.NoError(t, err)

	err = svc.DeleteTrade(ctx, pair.ID, first.ID, (&confirmRecorder{answer: false}).confirm)
	assert.ErrorIs(t, err, ErrDeclined)

	// The newest trade deletes without any confirmation.
	rec := &confirmRecorder{answer: false}
	assert.NoError(t, svc.DeleteTrade(ctx, pair.ID, last.ID, rec.confirm))
	assert.False(t, rec.asked)

	assert.NoError(t, svc.DeleteTrade(ctx, pair.ID, first.ID, ConfirmAlways))

	trades, err := svc.Trades(ctx, pair.ID)
	assert.NoError(t, err)
	assert.Empty(t, trades)
}

func TestService_UpdateInitialQuantityGuard(t *testing.T) {
	svc := setupService(t)
	pair := seedPair(t, svc)
	ctx := context.Background()

	// With an empty trade log the baseline is freely editable.
	rec := &confirmRecorder{answer: false}
	updated, err := svc.UpdateInitialQuantity(ctx, pair.ID, "AAA", d("200"), rec.confirm)
	assert.NoError(t, err)
	assert.False(t, rec.asked)
	assert.True(t, updated.StockAInitialQty.Equal(d("200")))

	_, err = svc.LogTrade(ctx, pair.ID, NewTradeInput{
		Date: "2024-01-02", FromTicker: "AAA", SwapQty: d("10"), FromPrice: d("10"), ToPrice: d("20"),
	})
	assert.NoError(t, err)

	// Once trades exist the edit rewrites history and must be confirmed.
	_, err = svc.UpdateInitialQuantity(ctx, pair.ID, "AAA", d("300"), (&confirmRecorder{answer: false}).confirm)
	assert.ErrorIs(t, err, ErrDeclined)

	confirmed, err := svc.UpdateInitialQuantity(ctx, pair.ID, "AAA", d("300"), ConfirmAlways)
	assert.NoError(t, err)
	assert.True(t, confirmed.StockAInitialQty.Equal(d("300")))
}

func TestService_DeletePair(t *testing.T) {
	svc := setupService(t)
	pair := seedPair(t, svc)
	ctx := context.Background()

	_, err := svc.LogTrade(ctx, pair.ID, NewTradeInput{
		Date: "2024-01-02", FromTicker: "AAA", SwapQty: d("10"), FromPrice: d("10"), ToPrice: d("20"),
	})
	assert.NoError(t, err)

	assert.NoError(t, svc.DeletePair(ctx, pair.ID))

	var integrityErr *IntegrityError
	_, err = svc.Trades(ctx, pair.ID)
	assert.ErrorAs(t, err, &integrityErr)

	err = svc.DeletePair(ctx, pair.ID)
	assert.ErrorAs(t, err, &integrityErr)
}

func TestService_TradeMustBelongToPair(t *testing.T) {
	svc := setupService(t)
	pairA := seedPair(t, svc)
	pairB, err := svc.CreatePair(context.Background(), PairInput{
		PairName:         "CCC/DDD",
		StockATicker:     "CCC",
		StockBTicker:     "DDD",
		StockAInitialQty: d("100"),
		StockBInitialQty: d("100"),
	})
	assert.NoError(t, err)

	trade, err := svc.LogTrade(context.Background(), pairA.ID, NewTradeInput{
		Date: "2024-01-02", FromTicker: "AAA", SwapQty: d("10"), FromPrice: d("10"), ToPrice: d("20"),
	})
	assert.NoError(t, err)

	var integrityErr *IntegrityError
	_, err = svc.CloseTrade(context.Background(), pairB.ID, trade.ID, CloseTradeInput{
		Date: "2024-02-02", SwapQty: d("1"), FromPrice: d("20"), ToPrice: d("10"),
	})
	assert.ErrorAs(t, err, &integrityErr)
}

func TestService_CurrentHoldingsAndClear(t *testing.T) {
	svc := setupService(t)
	pair := seedPair(t, svc)
	ctx := context.Background()

	_, err := svc.LogTrade(ctx, pair.ID, NewTradeInput{
		Date: "2024-01-02", FromTicker: "AAA", SwapQty: d("50"), FromPrice: d("10"), ToPrice: d("20"),
	})
	assert.NoError(t, err)

	holdings, err := svc.CurrentHoldings(ctx, pair.ID)
	assert.NoError(t, err)
	assertHoldings(t, holdings, "50", "125")

	assert.NoError(t, svc.ClearTrades(ctx, pair.ID))

	holdings, err = svc.CurrentHoldings(ctx, pair.ID)
	assert.NoError(t, err)
	assertHoldings(t, holdings, "100", "100")
}
