package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
)

var errExportsDisabled = domain.Reject(domain.ErrUnavailable, "Trade exports are not configured")

var csvHeader = []string{
	"id", "portfolioId", "symbol", "optionType", "strikePrice", "expirationDate",
	"openAction", "openQuantity", "openPremium", "openCommission", "openTradeDate", "openTotalCost",
	"closeAction", "closeQuantity", "closePremium", "closeCommission", "closeTradeDate", "closeTotalCost",
	"status", "profitLoss", "notes",
}

// ExportResult names the object written by an export.
type ExportResult struct {
	Path   string `json:"path"`
	Trades int    `json:"trades"`
}

// ExportService writes a user's trades to object storage as CSV and serves
// the stored files back. Without a blob writer every call reports the
// feature as unavailable.
type ExportService struct {
	trades domain.TradeStore
	writer domain.BlobWriter
	reader domain.BlobReader
	rec    recorder
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewExportService creates an ExportService. writer and reader may be nil.
func NewExportService(
	trades domain.TradeStore,
	writer domain.BlobWriter,
	reader domain.BlobReader,
	audit domain.AuditStore,
	logger *slog.Logger,
) *ExportService {
	return &ExportService{
		trades: trades,
		writer: writer,
		reader: reader,
		rec:    recorder{audit: audit, logger: logger, component: "export_service"},
		logger: logger,
		now:    utcNow,
		newID:  newID,
	}
}

func exportPrefix(userID string) string {
	return "exports/" + userID + "/"
}

// ExportTrades writes the principal's trades matching q as one CSV object.
func (s *ExportService) ExportTrades(ctx context.Context, p domain.Principal, q TradeQuery) (ExportResult, error) {
	if s.writer == nil {
		return ExportResult{}, errExportsDisabled
	}
	status := domain.TradeStatus(q.Status)
	if status != "" && !status.Valid() {
		v := &domain.ValidationError{}
		v.Add("status", `Invalid status filter. Must be "open" or "closed"`)
		return ExportResult{}, v
	}

	trades, err := s.trades.List(ctx, domain.TradeFilter{
		UserID:      p.UserID,
		PortfolioID: q.PortfolioID,
		Symbol:      strings.ToUpper(q.Symbol),
		Status:      status,
	})
	if err != nil {
		return ExportResult{}, fmt.Errorf("export_service: list trades: %w", err)
	}

	data, err := encodeTradesCSV(trades)
	if err != nil {
		return ExportResult{}, fmt.Errorf("export_service: encode csv: %w", err)
	}
	key := exportPrefix(p.UserID) + "trades-" + s.now().Format("20060102-150405") + "-" + s.newID() + ".csv"
	if err := s.writer.Put(ctx, key, bytes.NewReader(data), "text/csv"); err != nil {
		return ExportResult{}, fmt.Errorf("export_service: upload %s: %w", key, err)
	}

	res := ExportResult{Path: key, Trades: len(trades)}
	s.rec.record(ctx, p.UserID, domain.EventTradesExported, res, map[string]any{
		"path":   key,
		"trades": len(trades),
	})
	s.logger.InfoContext(ctx, "export_service: trades exported",
		slog.String("user_id", p.UserID),
		slog.String("path", key),
		slog.Int("trades", len(trades)),
	)
	return res, nil
}

// ListExports returns the principal's stored export files.
func (s *ExportService) ListExports(ctx context.Context, p domain.Principal) ([]domain.BlobInfo, error) {
	if s.reader == nil {
		return nil, errExportsDisabled
	}
	infos, err := s.reader.List(ctx, exportPrefix(p.UserID))
	if err != nil {
		return nil, fmt.Errorf("export_service: list exports: %w", err)
	}
	if infos == nil {
		infos = []domain.BlobInfo{}
	}
	return infos, nil
}

// OpenExport streams one of the principal's export files by base name. The
// caller closes the reader.
func (s *ExportService) OpenExport(ctx context.Context, p domain.Principal, name string) (io.ReadCloser, error) {
	if s.reader == nil {
		return nil, errExportsDisabled
	}
	if name == "" || name != path.Base(name) || strings.HasPrefix(name, ".") {
		v := &domain.ValidationError{}
		v.Add("name", "Export name is invalid")
		return nil, v
	}
	rc, err := s.reader.Get(ctx, exportPrefix(p.UserID)+name)
	if err != nil {
		return nil, fmt.Errorf("export_service: open %s: %w", name, err)
	}
	return rc, nil
}

func encodeTradesCSV(trades []domain.Trade) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, t := range trades {
		if err := w.Write(tradeRecord(t)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// money renders cash amounts to the cent; quoted prices keep their own
// precision.
func money(v float64) string { return decimal.NewFromFloat(v).StringFixed(2) }

func price(v float64) string { return decimal.NewFromFloat(v).String() }

func tradeRecord(t domain.Trade) []string {
	portfolioID := ""
	if t.PortfolioID != nil {
		portfolioID = *t.PortfolioID
	}
	rec := []string{
		t.ID, portfolioID, t.Symbol, string(t.OptionType), price(t.StrikePrice), string(t.ExpirationDate),
		string(t.Open.Action), strconv.Itoa(t.Open.Quantity), price(t.Open.Premium), money(t.Open.Commission),
		string(t.Open.TradeDate), money(t.Open.TotalCost),
		"", "", "", "", "", "",
		string(t.Status), "", t.Notes,
	}
	if c := t.Close; c != nil {
		rec[12] = string(c.Action)
		rec[13] = strconv.Itoa(c.Quantity)
		rec[14] = price(c.Premium)
		rec[15] = money(c.Commission)
		rec[16] = string(c.TradeDate)
		rec[17] = money(c.TotalCost)
	}
	if t.ProfitLoss != nil {
		rec[19] = money(*t.ProfitLoss)
	}
	return rec
}
