package service

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
)

func TestExportTradesCSV(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	open, _ := h.trades.Create(ctx, alice, longCall())
	closed, _ := h.trades.Create(ctx, alice, longCall())
	if _, err := h.trades.Close(ctx, alice, closed.ID, sellToClose()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := h.trades.Create(ctx, bob, longCall()); err != nil {
		t.Fatalf("bob create: %v", err)
	}

	res, err := h.exports.ExportTrades(ctx, alice, TradeQuery{})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if res.Trades != 2 || !strings.HasPrefix(res.Path, "exports/alice/trades-") || !strings.HasSuffix(res.Path, ".csv") {
		t.Fatalf("result=%+v", res)
	}

	rows, err := csv.NewReader(strings.NewReader(string(h.blobs.objects[res.Path]))).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 3 || rows[0][0] != "id" || len(rows[0]) != len(csvHeader) {
		t.Fatalf("rows=%v", rows)
	}
	byID := map[string][]string{}
	for _, r := range rows[1:] {
		byID[r[0]] = r
	}
	o := byID[open.ID]
	if o[11] != "250.65" || o[12] != "" || o[19] != "" || o[18] != "open" {
		t.Fatalf("open row=%v", o)
	}
	c := byID[closed.ID]
	if c[8] != "2.5" || c[17] != "399.35" || c[19] != "148.70" || c[18] != "closed" {
		t.Fatalf("closed row=%v", c)
	}

	infos, err := h.exports.ListExports(ctx, alice)
	if err != nil || len(infos) != 1 || infos[0].Path != res.Path {
		t.Fatalf("list=%+v err=%v", infos, err)
	}
	none, _ := h.exports.ListExports(ctx, bob)
	if len(none) != 0 {
		t.Fatalf("bob sees exports: %+v", none)
	}

	name := strings.TrimPrefix(res.Path, "exports/alice/")
	rc, err := h.exports.OpenExport(ctx, alice, name)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if len(body) == 0 {
		t.Fatal("empty export body")
	}

	_, err = h.exports.OpenExport(ctx, bob, name)
	wantKind(t, err, domain.ErrNotFound)
}

func TestExportRejectsPathNames(t *testing.T) {
	h := newHarness(t)
	for _, name := range []string{"", "../bob/x.csv", "a/b.csv", ".hidden"} {
		_, err := h.exports.OpenExport(context.Background(), alice, name)
		wantField(t, err, "name")
	}
}

func TestExportDisabled(t *testing.T) {
	h := newHarness(t)
	svc := NewExportService(h.store.Trades(), nil, nil, h.store.Audit(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := svc.ExportTrades(context.Background(), alice, TradeQuery{})
	wantKind(t, err, domain.ErrUnavailable)
	_, err = svc.ListExports(context.Background(), alice)
	wantKind(t, err, domain.ErrUnavailable)
}

func TestExportsInSameSecondKeepBothFiles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	at := time.Date(2025, 2, 3, 14, 0, 0, 0, time.UTC)
	h.exports.now = func() time.Time { return at }
	if _, err := h.trades.Create(ctx, alice, longCall()); err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := h.exports.ExportTrades(ctx, alice, TradeQuery{})
	if err != nil {
		t.Fatalf("first export: %v", err)
	}
	second, err := h.exports.ExportTrades(ctx, alice, TradeQuery{})
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	if first.Path == second.Path {
		t.Fatalf("both exports wrote %s", first.Path)
	}
	infos, _ := h.exports.ListExports(ctx, alice)
	if len(infos) != 2 {
		t.Fatalf("exports=%d want=2", len(infos))
	}
}
