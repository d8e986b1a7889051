package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
	"github.com/alanyoungcy/optionsdesk/internal/ledger"
	"github.com/alanyoungcy/optionsdesk/internal/service"
)

// PortfolioService is the subset of service.PortfolioService used by
// PortfolioHandler.
type PortfolioService interface {
	Create(ctx context.Context, p domain.Principal, in ledger.PortfolioInput) (domain.Portfolio, error)
	List(ctx context.Context, p domain.Principal, isActive *bool) ([]domain.Portfolio, error)
	GetDefault(ctx context.Context, p domain.Principal) (domain.Portfolio, error)
	Get(ctx context.Context, p domain.Principal, id string, opts service.DetailOpts) (domain.PortfolioDetail, error)
	Update(ctx context.Context, p domain.Principal, id string, in ledger.PortfolioInput) (domain.Portfolio, error)
	Delete(ctx context.Context, p domain.Principal, id string) error
}

// PortfolioHandler serves the portfolio endpoints.
type PortfolioHandler struct {
	portfolios PortfolioService
	logger     *slog.Logger
}

// NewPortfolioHandler creates a PortfolioHandler.
func NewPortfolioHandler(portfolios PortfolioService, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{portfolios: portfolios, logger: logger}
}

type portfolioRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
	IsDefault   *bool   `json:"isDefault"`
}

func (req portfolioRequest) input() ledger.PortfolioInput {
	return ledger.PortfolioInput{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
		IsDefault:   req.IsDefault,
	}
}

// Create adds a portfolio for the caller.
// POST /api/portfolios
func (h *PortfolioHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req portfolioRequest
	if !decodeBody(w, r, &req) {
		return
	}
	pf, err := h.portfolios.Create(r.Context(), p, req.input())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, pf)
}

// List returns the caller's portfolios, newest first.
// GET /api/portfolios?isActive=true|false
func (h *PortfolioHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var isActive *bool
	if r.URL.Query().Has("isActive") {
		v := queryBool(r, "isActive")
		isActive = &v
	}
	list, err := h.portfolios.List(r.Context(), p, isActive)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if list == nil {
		list = []domain.Portfolio{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetDefault returns the caller's default portfolio.
// GET /api/portfolios/default
func (h *PortfolioHandler) GetDefault(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	pf, err := h.portfolios.GetDefault(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pf)
}

// Get returns one portfolio with the requested expansions.
// GET /api/portfolios/{id}?includePositions=&includeMetrics=&includeTrades=
func (h *PortfolioHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	detail, err := h.portfolios.Get(r.Context(), p, pathParam(r, "id"), service.DetailOpts{
		Positions: queryBool(r, "includePositions"),
		Metrics:   queryBool(r, "includeMetrics"),
		Trades:    queryBool(r, "includeTrades"),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Update edits a portfolio.
// PUT /api/portfolios/{id}
func (h *PortfolioHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req portfolioRequest
	if !decodeBody(w, r, &req) {
		return
	}
	pf, err := h.portfolios.Update(r.Context(), p, pathParam(r, "id"), req.input())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pf)
}

// Delete removes a portfolio and its positions.
// DELETE /api/portfolios/{id}
func (h *PortfolioHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.portfolios.Delete(r.Context(), p, pathParam(r, "id")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
