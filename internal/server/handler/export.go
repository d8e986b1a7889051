package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
	"github.com/alanyoungcy/optionsdesk/internal/service"
)

// ExportService is the subset of service.ExportService used by
// ExportHandler.
type ExportService interface {
	ExportTrades(ctx context.Context, p domain.Principal, q service.TradeQuery) (service.ExportResult, error)
	ListExports(ctx context.Context, p domain.Principal) ([]domain.BlobInfo, error)
	OpenExport(ctx context.Context, p domain.Principal, name string) (io.ReadCloser, error)
}

// ExportHandler serves trade CSV exports.
type ExportHandler struct {
	exports ExportService
	logger  *slog.Logger
}

// NewExportHandler creates an ExportHandler.
func NewExportHandler(exports ExportService, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{exports: exports, logger: logger}
}

// Export writes the caller's trades to object storage as CSV. The trade
// list filters apply.
// POST /api/trades/export?status=&symbol=&portfolioId=
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	res, err := h.exports.ExportTrades(r.Context(), p, service.TradeQuery{
		Status:      q.Get("status"),
		Symbol:      strings.ToUpper(q.Get("symbol")),
		PortfolioID: q.Get("portfolioId"),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// List returns the caller's stored exports.
// GET /api/trades/exports
func (h *ExportHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	infos, err := h.exports.ListExports(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// Download streams one stored export.
// GET /api/trades/exports/{name}
func (h *ExportHandler) Download(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	name := pathParam(r, "name")
	rc, err := h.exports.OpenExport(r.Context(), p, name)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(r.Context(), "handler: export download interrupted",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
	}
}
