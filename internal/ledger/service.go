package ledger

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pair-trade-tracker-go/internal/models"
)

// ConfirmFunc resolves a guarded mutation. It is called synchronously with a
// human-readable message before anything is written; returning false aborts
// the mutation with ErrDeclined and no partial effect.
type ConfirmFunc func(message string) bool

// ConfirmAlways is a ConfirmFunc that accepts every guarded mutation.
func ConfirmAlways(string) bool { return true }

// Service wires the validator, the historic-edit guard and the store into the
// ledger's user-facing operations. Callers supply the pair being operated on;
// the service holds no current-pair state of its own.
type Service struct {
	store           *Store
	log             *zap.Logger
	allowFractional bool
}

// NewService creates a ledger service. allowFractional controls whether swap
// quantities and initial quantities may carry fractional shares; when false
// they are floored to whole shares the same way the validator floors trades.
func NewService(store *Store, log *zap.Logger, allowFractional bool) *Service {
	return &Service{store: store, log: log, allowFractional: allowFractional}
}

// Store exposes the underlying ledger store for read-side collaborators.
func (s *Service) Store() *Store { return s.store }

// PairInput carries the fields for creating a pair.
type PairInput struct {
	PairName         string
	StockATicker     string
	StockBTicker     string
	StockAInitialQty decimal.Decimal
	StockBInitialQty decimal.Decimal
}

// CreatePair validates and persists a new pair. Names and tickers are
// normalized to uppercase; the pair name must be unique across all pairs and
// initial quantities must be non-negative.
func (s *Service) CreatePair(ctx context.Context, in PairInput) (*models.Pair, error) {
	name := strings.ToUpper(strings.TrimSpace(in.PairName))
	tickerA := strings.ToUpper(strings.TrimSpace(in.StockATicker))
	tickerB := strings.ToUpper(strings.TrimSpace(in.StockBTicker))

	if name == "" || tickerA == "" || tickerB == "" {
		return nil, Validationf("pair name and both tickers are required")
	}
	if tickerA == tickerB {
		return nil, Validationf("the two tickers of a pair must differ")
	}
	if in.StockAInitialQty.IsNegative() || in.StockBInitialQty.IsNegative() {
		return nil, Validationf("initial quantities must be non-negative")
	}

	existing, err := s.store.ListPairs(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range existing {
		if p.PairName == name {
			return nil, Validationf("a pair named %q already exists", name)
		}
	}

	qtyA, qtyB := in.StockAInitialQty, in.StockBInitialQty
	if !s.allowFractional {
		qtyA = qtyA.Floor()
		qtyB = qtyB.Floor()
	}

	pair := &models.Pair{
		PairName:         name,
		StockATicker:     tickerA,
		StockBTicker:     tickerB,
		StockAInitialQty: qtyA,
		StockBInitialQty: qtyB,
	}
	if err := s.store.CreatePair(ctx, pair); err != nil {
		return nil, err
	}
	s.log.Info("Pair created", zap.String("pair", name), zap.Uint("id", pair.ID))
	return pair, nil
}

// UpdateInitialQuantity changes one side's holdings baseline. Once trades have
// been logged the baseline feeds every replayed snapshot, so the edit goes
// through the same confirmation gate as an historic trade edit.
func (s *Service) UpdateInitialQuantity(ctx context.Context, pairID uint, ticker string, qty decimal.Decimal, confirm ConfirmFunc) (*models.Pair, error) {
	pair, trades, err := s.pairWithTrades(ctx, pairID)
	if err != nil {
		return nil, err
	}
	if !pair.HasTicker(ticker) {
		return nil, Validationf("ticker %q is not part of pair %s", ticker, pair.PairName)
	}
	if qty.IsNegative() {
		return nil, Validationf("initial quantity must be a non-negative number")
	}
	if !s.allowFractional {
		qty = qty.Floor()
	}

	if len(trades) > 0 && !confirm(InitialQtyEditMessage) {
		return nil, declined(InitialQtyEditMessage)
	}

	if ticker == pair.StockATicker {
		pair.StockAInitialQty = qty
	} else {
		pair.StockBInitialQty = qty
	}
	if err := s.store.SavePair(ctx, pair); err != nil {
		return nil, err
	}
	s.log.Info("Initial quantity updated",
		zap.String("pair", pair.PairName),
		zap.String("ticker", ticker),
		zap.String("qty", qty.String()))
	return pair, nil
}

// DeletePair removes the pair and, in the same transaction, every trade that
// belongs to it.
func (s *Service) DeletePair(ctx context.Context, pairID uint) error {
	pair, err := s.store.GetPair(ctx, pairID)
	if err != nil {
		return err
	}
	if pair == nil {
		return integrityf("pair %d does not exist", pairID)
	}
	if err := s.store.DeletePairCascade(ctx, pairID); err != nil {
		return err
	}
	s.log.Info("Pair deleted with its trades", zap.String("pair", pair.PairName))
	return nil
}

// LogTrade validates a new open leg against the pair's replayed holdings and
// persists it as a new open trade.
func (s *Service) LogTrade(ctx context.Context, pairID uint, in NewTradeInput) (*models.Trade, error) {
	pair, trades, err := s.pairWithTrades(ctx, pairID)
	if err != nil {
		return nil, err
	}
	leg, err := ValidateNewTrade(pair, trades, in, s.allowFractional)
	if err != nil {
		return nil, err
	}
	trade := &models.Trade{
		PairID: pairID,
		Status: models.StatusOpen,
		Open:   *leg,
	}
	if err := s.store.CreateTrade(ctx, trade); err != nil {
		return nil, err
	}
	s.log.Info("Trade logged",
		zap.String("pair", pair.PairName),
		zap.Uint("trade_id", trade.ID),
		zap.String("direction", leg.FromTicker+">"+leg.ToTicker),
		zap.String("swap_qty", leg.SwapQty.String()))
	return trade, nil
}

// CloseTradeInput carries the user-entered fields of a close leg. The leg's
// tickers are not part of the input: a close always swaps back, so its source
// is the open leg's destination and vice versa.
type CloseTradeInput struct {
	Date      string
	SwapQty   decimal.Decimal
	FromPrice decimal.Decimal
	ToPrice   decimal.Decimal
}

// CloseTrade attaches the swap-back leg to an open trade, validated against
// the holdings that exist after the open leg (and every other trade) applied.
func (s *Service) CloseTrade(ctx context.Context, pairID, tradeID uint, in CloseTradeInput) (*models.Trade, error) {
	pair, trades, err := s.pairWithTrades(ctx, pairID)
	if err != nil {
		return nil, err
	}
	trade, err := s.tradeFor(ctx, pair, tradeID)
	if err != nil {
		return nil, err
	}
	if trade.IsLegacy() {
		return nil, Validationf("legacy trades cannot be closed")
	}
	if trade.IsClosed() {
		return nil, Validationf("trade %d is already closed", tradeID)
	}

	leg, err := ValidateNewTrade(pair, trades, NewTradeInput{
		Date:       in.Date,
		FromTicker: trade.Open.ToTicker,
		SwapQty:    in.SwapQty,
		FromPrice:  in.FromPrice,
		ToPrice:    in.ToPrice,
	}, s.allowFractional)
	if err != nil {
		return nil, err
	}

	trade.Status = models.StatusClosed
	trade.Close = *leg
	if err := s.store.SaveTrade(ctx, trade); err != nil {
		return nil, err
	}
	s.log.Info("Trade closed",
		zap.String("pair", pair.PairName),
		zap.Uint("trade_id", trade.ID),
		zap.String("swap_qty", leg.SwapQty.String()))
	return trade, nil
}

// UpdateLeg edits one field of one leg in place. Historic edits, classified by
// IsHistoricEdit, must be confirmed before anything is written; a declined
// confirmation returns ErrDeclined with the store untouched. The edit carries
// the validator's side effects (ticker flip, ToQty recompute).
func (s *Service) UpdateLeg(ctx context.Context, pairID, tradeID uint, legType LegType, field LegField, newValue string, confirm ConfirmFunc) (*models.Trade, error) {
	pair, trades, err := s.pairWithTrades(ctx, pairID)
	if err != nil {
		return nil, err
	}
	trade, err := s.tradeFor(ctx, pair, tradeID)
	if err != nil {
		return nil, err
	}

	if IsHistoricEdit(trades, tradeID, legType) && !confirm(HistoricEditMessage) {
		return nil, declined(HistoricEditMessage)
	}

	sanitized, err := ValidateLegEdit(pair, trades, tradeID, legType, field, newValue)
	if err != nil {
		return nil, err
	}

	leg := trade.Leg(string(legType))
	if leg == nil {
		return nil, Validationf("trade %d has no %s leg", tradeID, legType)
	}
	ApplyLegEdit(pair, leg, field, sanitized)

	if err := s.store.SaveTrade(ctx, trade); err != nil {
		return nil, err
	}
	s.log.Info("Trade leg updated",
		zap.String("pair", pair.PairName),
		zap.Uint("trade_id", tradeID),
		zap.String("leg", string(legType)),
		zap.String("field", string(field)))
	return trade, nil
}

// DeleteTrade removes a whole round trip, both legs, atomically. Deleting any
// trade other than the chronologically last one is historic and must be
// confirmed first.
func (s *Service) DeleteTrade(ctx context.Context, pairID, tradeID uint, confirm ConfirmFunc) error {
	pair, trades, err := s.pairWithTrades(ctx, pairID)
	if err != nil {
		return err
	}
	if _, err := s.tradeFor(ctx, pair, tradeID); err != nil {
		return err
	}
	if IsHistoricDelete(trades, tradeID) && !confirm(HistoricDeleteMessage) {
		return declined(HistoricDeleteMessage)
	}
	if err := s.store.DeleteTrade(ctx, tradeID); err != nil {
		return err
	}
	s.log.Info("Trade deleted", zap.String("pair", pair.PairName), zap.Uint("trade_id", tradeID))
	return nil
}

// ClearTrades empties the pair's trade log, leaving its configuration.
func (s *Service) ClearTrades(ctx context.Context, pairID uint) error {
	pair, err := s.requirePair(ctx, pairID)
	if err != nil {
		return err
	}
	if err := s.store.ClearTradesForPair(ctx, pairID); err != nil {
		return err
	}
	s.log.Info("Trade log cleared", zap.String("pair", pair.PairName))
	return nil
}

// Trades returns the pair's trades in ledger order.
func (s *Service) Trades(ctx context.Context, pairID uint) ([]models.Trade, error) {
	if _, err := s.requirePair(ctx, pairID); err != nil {
		return nil, err
	}
	return s.store.TradesForPair(ctx, pairID)
}

// CurrentHoldings replays the pair's trades and returns the final snapshot.
func (s *Service) CurrentHoldings(ctx context.Context, pairID uint) (Holdings, error) {
	pair, trades, err := s.pairWithTrades(ctx, pairID)
	if err != nil {
		return Holdings{}, err
	}
	return FinalHoldings(pair, trades), nil
}

// Metrics computes the pair's performance from stored prices, or nil when the
// pair has no trades yet.
func (s *Service) Metrics(ctx context.Context, pairID uint) (*Metrics, error) {
	pair, trades, err := s.pairWithTrades(ctx, pairID)
	if err != nil {
		return nil, err
	}
	return PerformanceMetrics(pair, trades), nil
}

func (s *Service) requirePair(ctx context.Context, pairID uint) (*models.Pair, error) {
	pair, err := s.store.GetPair(ctx, pairID)
	if err != nil {
		return nil, err
	}
	if pair == nil {
		return nil, integrityf("pair %d does not exist", pairID)
	}
	return pair, nil
}

func (s *Service) pairWithTrades(ctx context.Context, pairID uint) (*models.Pair, []models.Trade, error) {
	pair, err := s.requirePair(ctx, pairID)
	if err != nil {
		return nil, nil, err
	}
	trades, err := s.store.TradesForPair(ctx, pairID)
	if err != nil {
		return nil, nil, err
	}
	return pair, trades, nil
}

func (s *Service) tradeFor(ctx context.Context, pair *models.Pair, tradeID uint) (*models.Trade, error) {
	trade, err := s.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if trade == nil || trade.PairID != pair.ID {
		return nil, integrityf("trade %d does not belong to pair %s", tradeID, pair.PairName)
	}
	return trade, nil
}
