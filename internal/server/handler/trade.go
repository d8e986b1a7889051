package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
	"github.com/alanyoungcy/optionsdesk/internal/ledger"
	"github.com/alanyoungcy/optionsdesk/internal/service"
)

// TradeService is the subset of service.TradeService used by TradeHandler.
type TradeService interface {
	Create(ctx context.Context, p domain.Principal, ot ledger.OpenTrade) (domain.Trade, error)
	Get(ctx context.Context, p domain.Principal, id string) (domain.Trade, error)
	List(ctx context.Context, p domain.Principal, q service.TradeQuery) ([]domain.Trade, error)
	ListOpen(ctx context.Context, p domain.Principal, q service.OpenTradeQuery) ([]domain.Trade, error)
	Update(ctx context.Context, p domain.Principal, id string, edit ledger.TradeEdit) (domain.Trade, error)
	Close(ctx context.Context, p domain.Principal, id string, c ledger.CloseTrade) (domain.Trade, error)
	Delete(ctx context.Context, p domain.Principal, id string) error
}

// TradeHandler serves the option trade endpoints.
type TradeHandler struct {
	trades TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(trades TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{trades: trades, logger: logger}
}

type createTradeRequest struct {
	PortfolioID    *string  `json:"portfolioId"`
	Symbol         string   `json:"symbol"`
	OptionType     string   `json:"optionType"`
	StrikePrice    float64  `json:"strikePrice"`
	ExpirationDate string   `json:"expirationDate"`
	OpenAction     string   `json:"openAction"`
	OpenQuantity   float64  `json:"openQuantity"`
	OpenPremium    float64  `json:"openPremium"`
	OpenCommission *float64 `json:"openCommission"`
	OpenTradeDate  string   `json:"openTradeDate"`
	Notes          string   `json:"notes"`
}

type updateTradeRequest struct {
	PortfolioID     json.RawMessage `json:"portfolioId"`
	Symbol          *string         `json:"symbol"`
	OptionType      *string         `json:"optionType"`
	StrikePrice     *float64        `json:"strikePrice"`
	ExpirationDate  *string         `json:"expirationDate"`
	OpenAction      *string         `json:"openAction"`
	OpenQuantity    *float64        `json:"openQuantity"`
	OpenPremium     *float64        `json:"openPremium"`
	OpenCommission  *float64        `json:"openCommission"`
	OpenTradeDate   *string         `json:"openTradeDate"`
	CloseAction     *string         `json:"closeAction"`
	ClosePremium    *float64        `json:"closePremium"`
	CloseCommission *float64        `json:"closeCommission"`
	CloseTradeDate  *string         `json:"closeTradeDate"`
	Notes           *string         `json:"notes"`
}

type closeTradeRequest struct {
	CloseAction     string   `json:"closeAction"`
	ClosePremium    float64  `json:"closePremium"`
	CloseCommission *float64 `json:"closeCommission"`
	CloseTradeDate  string   `json:"closeTradeDate"`
}

// wholeQuantity converts a JSON number to a contract count. Fractional or
// out-of-range values become 0 so validation rejects them.
func wholeQuantity(f float64) int {
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0
	}
	return int(f)
}

// Create opens a new trade.
// POST /api/trades
func (h *TradeHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req createTradeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	trade, err := h.trades.Create(r.Context(), p, ledger.OpenTrade{
		PortfolioID:    req.PortfolioID,
		Symbol:         req.Symbol,
		OptionType:     domain.OptionType(req.OptionType),
		StrikePrice:    req.StrikePrice,
		ExpirationDate: domain.Date(req.ExpirationDate),
		Action:         domain.OpeningAction(req.OpenAction),
		Quantity:       wholeQuantity(req.OpenQuantity),
		Premium:        req.OpenPremium,
		Commission:     req.OpenCommission,
		TradeDate:      domain.Date(req.OpenTradeDate),
		Notes:          req.Notes,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, trade)
}

// List returns the caller's trades.
// GET /api/trades?status=&symbol=&portfolioId=&limit=&offset=
func (h *TradeHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit, offset := listPage(r)
	trades, err := h.trades.List(r.Context(), p, service.TradeQuery{
		Status:      q.Get("status"),
		Symbol:      strings.ToUpper(q.Get("symbol")),
		PortfolioID: q.Get("portfolioId"),
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, http.StatusOK, trades)
}

// ListOpen returns the caller's open trades, newest opening date first.
// GET /api/trades/open?openAction=&symbol=
func (h *TradeHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit, offset := listPage(r)
	trades, err := h.trades.ListOpen(r.Context(), p, service.OpenTradeQuery{
		OpenAction: q.Get("openAction"),
		Symbol:     strings.ToUpper(q.Get("symbol")),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, http.StatusOK, trades)
}

// Get returns a single trade.
// GET /api/trades/{id}
func (h *TradeHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	trade, err := h.trades.Get(r.Context(), p, pathParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, trade)
}

// Update applies a partial edit.
// PUT /api/trades/{id}
func (h *TradeHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req updateTradeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	edit, ok := req.edit()
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	trade, err := h.trades.Update(r.Context(), p, pathParam(r, "id"), edit)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, trade)
}

// edit converts the request to a ledger edit. It reports false when
// portfolioId is neither a string nor null.
func (req updateTradeRequest) edit() (ledger.TradeEdit, bool) {
	e := ledger.TradeEdit{
		Symbol:          req.Symbol,
		StrikePrice:     req.StrikePrice,
		OpenPremium:     req.OpenPremium,
		OpenCommission:  req.OpenCommission,
		ClosePremium:    req.ClosePremium,
		CloseCommission: req.CloseCommission,
		Notes:           req.Notes,
	}
	if raw := bytes.TrimSpace(req.PortfolioID); len(raw) > 0 {
		var id *string
		if err := json.Unmarshal(raw, &id); err != nil {
			return e, false
		}
		if id == nil {
			id = new(string)
		}
		e.PortfolioID = id
	}
	if req.OptionType != nil {
		v := domain.OptionType(*req.OptionType)
		e.OptionType = &v
	}
	if req.ExpirationDate != nil {
		v := domain.Date(*req.ExpirationDate)
		e.ExpirationDate = &v
	}
	if req.OpenAction != nil {
		v := domain.OpeningAction(*req.OpenAction)
		e.OpenAction = &v
	}
	if req.OpenQuantity != nil {
		v := wholeQuantity(*req.OpenQuantity)
		e.OpenQuantity = &v
	}
	if req.OpenTradeDate != nil {
		v := domain.Date(*req.OpenTradeDate)
		e.OpenTradeDate = &v
	}
	if req.CloseAction != nil {
		v := domain.ClosingAction(*req.CloseAction)
		e.CloseAction = &v
	}
	if req.CloseTradeDate != nil {
		v := domain.Date(*req.CloseTradeDate)
		e.CloseTradeDate = &v
	}
	return e, true
}

// Close records the closing leg of an open trade.
// PUT /api/trades/{id}/close
func (h *TradeHandler) Close(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req closeTradeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	trade, err := h.trades.Close(r.Context(), p, pathParam(r, "id"), ledger.CloseTrade{
		Action:     domain.ClosingAction(req.CloseAction),
		Premium:    req.ClosePremium,
		Commission: req.CloseCommission,
		TradeDate:  domain.Date(req.CloseTradeDate),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, trade)
}

// Delete removes a trade.
// DELETE /api/trades/{id}
func (h *TradeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.trades.Delete(r.Context(), p, pathParam(r, "id")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
