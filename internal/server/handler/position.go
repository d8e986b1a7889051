package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
	"github.com/alanyoungcy/optionsdesk/internal/ledger"
	"github.com/alanyoungcy/optionsdesk/internal/service"
)

// PositionService is the subset of service.PositionService used by
// PositionHandler.
type PositionService interface {
	Create(ctx context.Context, p domain.Principal, portfolioID string, in ledger.PositionInput) (domain.Position, error)
	List(ctx context.Context, p domain.Principal, portfolioID string) ([]domain.Position, error)
	Get(ctx context.Context, p domain.Principal, id string) (domain.Position, error)
	Update(ctx context.Context, p domain.Principal, id string, in ledger.PositionInput) (domain.Position, error)
	Delete(ctx context.Context, p domain.Principal, id string) error
	UpdatePrices(ctx context.Context, p domain.Principal, portfolioID string, prices []domain.PriceQuote) (service.PriceUpdateResult, error)
}

// PositionHandler serves the position endpoints nested under portfolios.
type PositionHandler struct {
	positions PositionService
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(positions PositionService, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{positions: positions, logger: logger}
}

type positionRequest struct {
	Ticker       *string  `json:"ticker"`
	Shares       *float64 `json:"shares"`
	CostBasis    *float64 `json:"costBasis"`
	CurrentPrice *float64 `json:"currentPrice"`
	Notes        *string  `json:"notes"`
}

func (req positionRequest) input() ledger.PositionInput {
	return ledger.PositionInput{
		Ticker:       req.Ticker,
		Shares:       req.Shares,
		CostBasis:    req.CostBasis,
		CurrentPrice: req.CurrentPrice,
		Notes:        req.Notes,
	}
}

type updatePricesRequest struct {
	Prices []domain.PriceQuote `json:"prices"`
}

// Create adds a position to a portfolio.
// POST /api/portfolios/{portfolioId}/positions
func (h *PositionHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req positionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	pos, err := h.positions.Create(r.Context(), p, pathParam(r, "portfolioId"), req.input())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, pos)
}

// List returns a portfolio's positions, newest first.
// GET /api/portfolios/{portfolioId}/positions
func (h *PositionHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	list, err := h.positions.List(r.Context(), p, pathParam(r, "portfolioId"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if list == nil {
		list = []domain.Position{}
	}
	writeJSON(w, http.StatusOK, list)
}

// UpdatePrices sets current prices for the portfolio's matching tickers.
// PATCH /api/portfolios/{portfolioId}/positions/prices
func (h *PositionHandler) UpdatePrices(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req updatePricesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.positions.UpdatePrices(r.Context(), p, pathParam(r, "portfolioId"), req.Prices)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if res.Positions == nil {
		res.Positions = []domain.PriceUpdate{}
	}
	writeJSON(w, http.StatusOK, res)
}

// Get returns one position.
// GET /api/positions/{id}
func (h *PositionHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	pos, err := h.positions.Get(r.Context(), p, pathParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// Update edits a position and revalues it.
// PUT /api/positions/{id}
func (h *PositionHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req positionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	pos, err := h.positions.Update(r.Context(), p, pathParam(r, "id"), req.input())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// Delete removes a position.
// DELETE /api/positions/{id}
func (h *PositionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.positions.Delete(r.Context(), p, pathParam(r, "id")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
