package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pair-trade-tracker-go/internal/alpaca"
	"pair-trade-tracker-go/internal/ledger"
	"pair-trade-tracker-go/internal/ledger/csvio"
	"pair-trade-tracker-go/internal/models"
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log  *zap.Logger
	svc  *ledger.Service
	feed *alpaca.RestClient
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, svc *ledger.Service, feed *alpaca.RestClient) *APIHandler {
	return &APIHandler{log: log, svc: svc, feed: feed}
}

// Register mounts all API routes on the mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/pairs", h.ListPairs)
	mux.HandleFunc("POST /api/pairs", h.CreatePair)
	mux.HandleFunc("DELETE /api/pairs/{id}", h.DeletePair)
	mux.HandleFunc("PATCH /api/pairs/{id}/initial-qty", h.UpdateInitialQuantity)
	mux.HandleFunc("GET /api/pairs/{id}/trades", h.ListTrades)
	mux.HandleFunc("POST /api/pairs/{id}/trades", h.LogTrade)
	mux.HandleFunc("DELETE /api/pairs/{id}/trades", h.ClearTrades)
	mux.HandleFunc("GET /api/pairs/{id}/holdings", h.Holdings)
	mux.HandleFunc("GET /api/pairs/{id}/metrics", h.Metrics)
	mux.HandleFunc("GET /api/pairs/{id}/export", h.ExportCSV)
	mux.HandleFunc("POST /api/pairs/{id}/import", h.ImportCSV)
	mux.HandleFunc("POST /api/trades/{id}/close", h.CloseTrade)
	mux.HandleFunc("PATCH /api/trades/{id}", h.UpdateLeg)
	mux.HandleFunc("DELETE /api/trades/{id}", h.DeleteTrade)
}

// confirmFromRequest turns the request's confirm flag into the synchronous
// confirmation gate guarded mutations require. A guarded request without
// confirm=true is answered 409 with the confirmation message; re-submitting
// with the flag is the affirmative resolution.
func confirmFromRequest(r *http.Request) ledger.ConfirmFunc {
	confirmed := r.URL.Query().Get("confirm") == "true"
	return func(string) bool { return confirmed }
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *ledger.ValidationError
		integrityErr  *ledger.IntegrityError
		declinedErr   *ledger.DeclinedError
	)
	switch {
	case errors.As(err, &validationErr):
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": validationErr.Reason})
	case errors.As(err, &integrityErr):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": integrityErr.Reason})
	case errors.As(err, &declinedErr):
		h.writeJSON(w, http.StatusConflict, map[string]any{
			"confirmationRequired": true,
			"message":              declinedErr.Message,
		})
	default:
		h.log.Error("Request failed", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func pathID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	return uint(id), err
}

func (h *APIHandler) ListPairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := h.svc.Store().ListPairs(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, pairs)
}

func (h *APIHandler) CreatePair(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PairName         string          `json:"pairName"`
		StockATicker     string          `json:"stockATicker"`
		StockBTicker     string          `json:"stockBTicker"`
		StockAInitialQty decimal.Decimal `json:"stockAInitialQty"`
		StockBInitialQty decimal.Decimal `json:"stockBInitialQty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	pair, err := h.svc.CreatePair(r.Context(), ledger.PairInput{
		PairName:         in.PairName,
		StockATicker:     in.StockATicker,
		StockBTicker:     in.StockBTicker,
		StockAInitialQty: in.StockAInitialQty,
		StockBInitialQty: in.StockBInitialQty,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, pair)
}

func (h *APIHandler) DeletePair(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid pair id"})
		return
	}
	if err := h.svc.DeletePair(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) UpdateInitialQuantity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid pair id"})
		return
	}
	var in struct {
		Ticker string          `json:"ticker"`
		Qty    decimal.Decimal `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	pair, err := h.svc.UpdateInitialQuantity(r.Context(), id, in.Ticker, in.Qty, confirmFromRequest(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, pair)
}

// tradeView is one trade with its replayed holdings snapshot and, for closed
// trades, the round-trip outcome.
type tradeView struct {
	Trade    models.Trade    `json:"trade"`
	Holdings ledger.Holdings `json:"holdings"`
	Outcome  *ledger.Outcome `json:"outcome,omitempty"`
}

func (h *APIHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid pair id"})
		return
	}
	pair, err := h.svc.Store().GetPair(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if pair == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "pair not found"})
		return
	}
	trades, err := h.svc.Trades(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	history := ledger.Replay(pair, trades)
	views := make([]tradeView, len(trades))
	for i := range trades {
		views[i] = tradeView{
			Trade:    trades[i],
			Holdings: history[i],
			Outcome:  ledger.TradeOutcome(pair, &trades[i]),
		}
	}
	h.writeJSON(w, http.StatusOK, views)
}

func (h *APIHandler) LogTrade(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid pair id"})
		return
	}
	var in struct {
		Date       string          `json:"date"`
		FromTicker string          `json:"fromTicker"`
		SwapQty    decimal.Decimal `json:"swapQty"`
		FromPrice  decimal.Decimal `json:"fromPrice"`
		ToPrice    decimal.Decimal `json:"toPrice"`
		Notes      string          `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	trade, err := h.svc.LogTrade(r.Context(), id, ledger.NewTradeInput{
		Date:       in.Date,
		FromTicker: in.FromTicker,
		SwapQty:    in.SwapQty,
		FromPrice:  in.FromPrice,
		ToPrice:    in.ToPrice,
		Notes:      in.Notes,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, trade)
}

func (h *APIHandler) ClearTrades(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid pair id"})
		return
	}
	if err := h.svc.ClearTrades(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) CloseTrade(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid trade id"})
		return
	}
	var in struct {
		Date      string          `json:"date"`
		SwapQty   decimal.Decimal `json:"swapQty"`
		FromPrice decimal.Decimal `json:"fromPrice"`
		ToPrice   decimal.Decimal `json:"toPrice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	trade, err := h.svc.Store().GetTrade(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if trade == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "trade not found"})
		return
	}
	closed, err := h.svc.CloseTrade(r.Context(), trade.PairID, id, ledger.CloseTradeInput{
		Date:      in.Date,
		SwapQty:   in.SwapQty,
		FromPrice: in.FromPrice,
		ToPrice:   in.ToPrice,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, closed)
}

func (h *APIHandler) UpdateLeg(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid trade id"})
		return
	}
	var in struct {
		Leg   string `json:"leg"`
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	trade, err := h.svc.Store().GetTrade(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if trade == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "trade not found"})
		return
	}
	updated, err := h.svc.UpdateLeg(r.Context(), trade.PairID, id,
		ledger.LegType(in.Leg), ledger.LegField(in.Field), in.Value, confirmFromRequest(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

func (h *APIHandler) DeleteTrade(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid trade id"})
		return
	}
	trade, err := h.svc.Store().GetTrade(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if trade == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "trade not found"})
		return
	}
	if err := h.svc.DeleteTrade(r.Context(), trade.PairID, id, confirmFromRequest(r)); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// holdingsResponse is the replayed holdings optionally priced with the live
// feed. Live values are best-effort: a feed failure leaves them nil rather
// than failing the request.
type holdingsResponse struct {
	Holdings   ledger.Holdings  `json:"holdings"`
	PriceA     *decimal.Decimal `json:"priceA,omitempty"`
	PriceB     *decimal.Decimal `json:"priceB,omitempty"`
	ValueA     *decimal.Decimal `json:"valueA,omitempty"`
	ValueB     *decimal.Decimal `json:"valueB,omitempty"`
	TotalValue *decimal.Decimal `json:"totalValue,omitempty"`
}

func (h *APIHandler) Holdings(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid pair id"})
		return
	}
	pair, err := h.svc.Store().GetPair(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if pair == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "pair not found"})
		return
	}
	holdings, err := h.svc.CurrentHoldings(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := holdingsResponse{Holdings: holdings}
	if h.feed.Configured() {
		total := decimal.Zero
		priced := true
		if priceA, err := h.feed.GetLatestPrice(r.Context(), pair.StockATicker); err == nil {
			valueA := holdings.QtyA.Mul(priceA)
			resp.PriceA, resp.ValueA = &priceA, &valueA
			total = total.Add(valueA)
		} else {
			h.log.Warn("Could not fetch live price", zap.String("symbol", pair.StockATicker), zap.Error(err))
			priced = false
		}
		if priceB, err := h.feed.GetLatestPrice(r.Context(), pair.StockBTicker); err == nil {
			valueB := holdings.QtyB.Mul(priceB)
			resp.PriceB, resp.ValueB = &priceB, &valueB
			total = total.Add(valueB)
		} else {
			h.log.Warn("Could not fetch live price", zap.String("symbol", pair.StockBTicker), zap.Error(err))
			priced = false
		}
		if priced {
			resp.TotalValue = &total
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid pair id"})
		return
	}
	metrics, err := h.svc.Metrics(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if metrics == nil {
		// No trades yet: there is nothing to measure, which is not an error.
		h.writeJSON(w, http.StatusOK, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, metrics)
}

func (h *APIHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid pair id"})
		return
	}
	pair, err := h.svc.Store().GetPair(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if pair == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "pair not found"})
		return
	}
	trades, err := h.svc.Trades(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		`attachment; filename="`+csvio.ExportFilename(pair.PairName, time.Now())+`"`)
	if err := csvio.Export(w, trades); err != nil {
		h.log.Error("CSV export failed", zap.Error(err))
	}
}

func (h *APIHandler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid pair id"})
		return
	}
	pair, err := h.svc.Store().GetPair(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if pair == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "pair not found"})
		return
	}
	trades, err := h.svc.Trades(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	result, err := csvio.Import(r.Body, pair, trades, csvio.ImportOptions{
		SkipValidation: r.URL.Query().Get("skip_validation") == "true",
	})
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := h.svc.Store().BulkAddTrades(r.Context(), result.Trades); err != nil {
		h.writeError(w, err)
		return
	}
	h.log.Info("CSV import complete",
		zap.String("pair", pair.PairName),
		zap.Int("imported", len(result.Trades)),
		zap.Int("rejected", len(result.Rejected)))
	h.writeJSON(w, http.StatusOK, map[string]any{
		"imported": len(result.Trades),
		"rejected": result.Rejected,
	})
}
