package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
	"github.com/alanyoungcy/optionsdesk/internal/ledger"
)

func TestPortfolioCreateDefaults(t *testing.T) {
	h := newHarness(t)
	pf, err := h.portfolios.Create(context.Background(), alice, ledger.PortfolioInput{Name: ptr("Main")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !pf.IsActive || pf.IsDefault || pf.UserID != "alice" {
		t.Fatalf("portfolio=%+v", pf)
	}
}

func TestPortfolioNameConflict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.portfolios.Create(ctx, alice, ledger.PortfolioInput{Name: ptr("Main")}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := h.portfolios.Create(ctx, alice, ledger.PortfolioInput{Name: ptr("Main")})
	wantKind(t, err, domain.ErrConflict)
	if err.Error() != "Portfolio with this name already exists" {
		t.Fatalf("message=%q", err.Error())
	}

	if _, err := h.portfolios.Create(ctx, bob, ledger.PortfolioInput{Name: ptr("Main")}); err != nil {
		t.Fatalf("same name for another user: %v", err)
	}

	other, _ := h.portfolios.Create(ctx, alice, ledger.PortfolioInput{Name: ptr("Other")})
	_, err = h.portfolios.Update(ctx, alice, other.ID, ledger.PortfolioInput{Name: ptr("Main")})
	wantKind(t, err, domain.ErrConflict)

	if _, err := h.portfolios.Update(ctx, alice, other.ID, ledger.PortfolioInput{Name: ptr("Other")}); err != nil {
		t.Fatalf("keeping own name: %v", err)
	}
}

func TestPortfolioDefaultSwitching(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.portfolios.GetDefault(ctx, alice)
	wantKind(t, err, domain.ErrNotFound)
	if err.Error() != "No default portfolio found" {
		t.Fatalf("message=%q", err.Error())
	}

	first, _ := h.portfolios.Create(ctx, alice, ledger.PortfolioInput{Name: ptr("A"), IsDefault: ptr(true)})
	second, _ := h.portfolios.Create(ctx, alice, ledger.PortfolioInput{Name: ptr("B"), IsDefault: ptr(true)})

	def, err := h.portfolios.GetDefault(ctx, alice)
	if err != nil || def.ID != second.ID {
		t.Fatalf("default=%+v err=%v want %s", def, err, second.ID)
	}
	reloaded, _ := h.portfolios.Get(ctx, alice, first.ID, DetailOpts{})
	if reloaded.IsDefault {
		t.Fatal("first portfolio still default")
	}

	if _, err := h.portfolios.Update(ctx, alice, first.ID, ledger.PortfolioInput{IsDefault: ptr(true)}); err != nil {
		t.Fatalf("promote: %v", err)
	}
	def, _ = h.portfolios.GetDefault(ctx, alice)
	if def.ID != first.ID {
		t.Fatalf("default=%s want %s", def.ID, first.ID)
	}
	list, _ := h.portfolios.List(ctx, alice, nil)
	defaults := 0
	for _, p := range list {
		if p.IsDefault {
			defaults++
		}
	}
	if defaults != 1 {
		t.Fatalf("defaults=%d want 1", defaults)
	}
}

func TestPortfolioDefaultSwitchLocked(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	unlock, err := h.locks.Acquire(ctx, "portfolio-default:alice", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	_, err = h.portfolios.Create(ctx, alice, ledger.PortfolioInput{Name: ptr("A"), IsDefault: ptr(true)})
	wantKind(t, err, domain.ErrLockHeld)

	if _, err := h.portfolios.Create(ctx, alice, ledger.PortfolioInput{Name: ptr("B")}); err != nil {
		t.Fatalf("non-default create blocked by lock: %v", err)
	}
	unlock()
	if _, err := h.portfolios.Create(ctx, alice, ledger.PortfolioInput{Name: ptr("A"), IsDefault: ptr(true)}); err != nil {
		t.Fatalf("create after unlock: %v", err)
	}
}

func TestPortfolioListActiveFilter(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a, _ := h.portfolios.Create(ctx, alice, ledger.PortfolioInput{Name: ptr("A")})
	b, _ := h.portfolios.Create(ctx, alice, ledger.PortfolioInput{Name: ptr("B"), IsActive: ptr(false)})

	all, _ := h.portfolios.List(ctx, alice, nil)
	if len(all) != 2 || all[0].ID != b.ID || all[1].ID != a.ID {
		t.Fatalf("list=%+v want newest first", all)
	}
	active, _ := h.portfolios.List(ctx, alice, ptr(true))
	if len(active) != 1 || active[0].ID != a.ID {
		t.Fatalf("active=%+v", active)
	}
}

func TestPortfolioOwnerOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pf, _ := h.portfolios.Create(ctx, alice, ledger.PortfolioInput{Name: ptr("Main")})

	_, err := h.portfolios.Get(ctx, admin, pf.ID, DetailOpts{})
	wantKind(t, err, domain.ErrForbidden)
	err = h.portfolios.Delete(ctx, bob, pf.ID)
	wantKind(t, err, domain.ErrForbidden)

	_, err = h.portfolios.Get(ctx, alice, "missing", DetailOpts{})
	wantKind(t, err, domain.ErrNotFound)
}

func TestPortfolioDetail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pf, _ := h.portfolios.Create(ctx, alice, ledger.PortfolioInput{Name: ptr("Main")})

	for _, in := range []ledger.PositionInput{
		{Ticker: ptr("aaa"), Shares: ptr(10.0), CostBasis: ptr(1000.0), CurrentPrice: ptr(120.0)},
		{Ticker: ptr("bbb"), Shares: ptr(5.0), CostBasis: ptr(1000.0), CurrentPrice: ptr(150.0)},
		{Ticker: ptr("ccc"), Shares: ptr(1.0), CostBasis: ptr(50.0)},
	} {
		if _, err := h.positions.Create(ctx, alice, pf.ID, in); err != nil {
			t.Fatalf("create position: %v", err)
		}
	}

	ot := longCall()
	ot.PortfolioID = ptr(pf.ID)
	tr, _ := h.trades.Create(ctx, alice, ot)
	if _, err := h.trades.Create(ctx, alice, ot); err != nil {
		t.Fatalf("create trade: %v", err)
	}
	if _, err := h.trades.Close(ctx, alice, tr.ID, sellToClose()); err != nil {
		t.Fatalf("close: %v", err)
	}

	bare, _ := h.portfolios.Get(ctx, alice, pf.ID, DetailOpts{})
	if bare.Positions != nil || bare.Metrics != nil || bare.AssociatedTrades != nil {
		t.Fatalf("unrequested expansions: %+v", bare)
	}

	d, err := h.portfolios.Get(ctx, alice, pf.ID, DetailOpts{Positions: true, Metrics: true, Trades: true})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(d.Positions) != 3 {
		t.Fatalf("positions=%d", len(d.Positions))
	}
	m := d.Metrics
	if m.TotalPositions != 3 || !near(m.TotalMarketValue, 1950) || !near(m.TotalCostBasis, 2050) || !near(m.TotalUnrealizedPL, -50) {
		t.Fatalf("metrics=%+v", m)
	}
	if m.TopGainer.Ticker != "AAA" || m.TopLoser.Ticker != "BBB" {
		t.Fatalf("movers gainer=%+v loser=%+v", m.TopGainer, m.TopLoser)
	}
	at := d.AssociatedTrades
	if at.OpenCount != 1 || at.ClosedCount != 1 || !near(at.TotalProfitLoss, 148.70) {
		t.Fatalf("associated=%+v", at)
	}
}

func TestPortfolioDeleteCascades(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pf, _ := h.portfolios.Create(ctx, alice, ledger.PortfolioInput{Name: ptr("Main")})
	pos, _ := h.positions.Create(ctx, alice, pf.ID, ledger.PositionInput{Ticker: ptr("MSFT"), Shares: ptr(1.0), CostBasis: ptr(400.0)})
	ot := longCall()
	ot.PortfolioID = ptr(pf.ID)
	tr, _ := h.trades.Create(ctx, alice, ot)

	if err := h.portfolios.Delete(ctx, alice, pf.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err := h.positions.Get(ctx, alice, pos.ID)
	wantKind(t, err, domain.ErrNotFound)

	kept, err := h.trades.Get(ctx, alice, tr.ID)
	if err != nil {
		t.Fatalf("trade removed with portfolio: %v", err)
	}
	if kept.PortfolioID != nil {
		t.Fatalf("trade still linked to %s", *kept.PortfolioID)
	}
}

func TestPortfolioValidation(t *testing.T) {
	h := newHarness(t)
	_, err := h.portfolios.Create(context.Background(), alice, ledger.PortfolioInput{})
	wantField(t, err, "name")

	_, err = h.portfolios.Update(context.Background(), alice, "missing", ledger.PortfolioInput{Name: ptr("")})
	wantField(t, err, "name")
}

// racingPortfolios loses every insert and update to a concurrent writer of
// the same name.
type racingPortfolios struct {
	domain.PortfolioStore
}

func (racingPortfolios) Create(context.Context, domain.Portfolio) error { return domain.ErrConflict }
func (racingPortfolios) Update(context.Context, domain.Portfolio) error { return domain.ErrConflict }

func TestPortfolioDefaultKeptWhenWriteLosesNameRace(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first, err := h.portfolios.Create(ctx, alice, ledger.PortfolioInput{Name: ptr("A"), IsDefault: ptr(true)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	other, _ := h.portfolios.Create(ctx, alice, ledger.PortfolioInput{Name: ptr("B")})

	st := h.store
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	racing := NewPortfolioService(racingPortfolios{st.Portfolios()}, st.Positions(), st.Trades(), h.locks, h.bus, st.Audit(), logger)

	_, err = racing.Create(ctx, alice, ledger.PortfolioInput{Name: ptr("C"), IsDefault: ptr(true)})
	wantKind(t, err, domain.ErrConflict)
	_, err = racing.Update(ctx, alice, other.ID, ledger.PortfolioInput{IsDefault: ptr(true)})
	wantKind(t, err, domain.ErrConflict)

	def, err := h.portfolios.GetDefault(ctx, alice)
	if err != nil || def.ID != first.ID {
		t.Fatalf("default=%+v err=%v want %s", def, err, first.ID)
	}
}
