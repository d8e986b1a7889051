package ledger

import (
	"errors"
	"strings"
	"testing"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
)

func fieldSet(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err=%v want *ValidationError", err)
	}
	out := make(map[string]string, len(verr.Fields))
	for _, f := range verr.Fields {
		out[f.Field] = f.Message
	}
	return out
}

func TestOpenTradeValidateAccepts(t *testing.T) {
	if err := longOpen().Validate(); err != nil {
		t.Fatalf("valid trade rejected: %v", err)
	}
	ot := shortOpen()
	ot.Symbol = "ABCDEFGHIJ"
	ot.Notes = strings.Repeat("n", 1000)
	if err := ot.Validate(); err != nil {
		t.Fatalf("boundary trade rejected: %v", err)
	}
}

func TestOpenTradeValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*OpenTrade)
		field  string
	}{
		{"empty symbol", func(o *OpenTrade) { o.Symbol = "" }, "symbol"},
		{"long symbol", func(o *OpenTrade) { o.Symbol = "ABCDEFGHIJK" }, "symbol"},
		{"lowercase symbol", func(o *OpenTrade) { o.Symbol = "Spy" }, "symbol"},
		{"bad option type", func(o *OpenTrade) { o.OptionType = "straddle" }, "optionType"},
		{"zero strike", func(o *OpenTrade) { o.StrikePrice = 0 }, "strikePrice"},
		{"bad expiration", func(o *OpenTrade) { o.ExpirationDate = "04/17/2025" }, "expirationDate"},
		{"bad action", func(o *OpenTrade) { o.Action = "buy" }, "openAction"},
		{"negative quantity", func(o *OpenTrade) { o.Quantity = -1 }, "openQuantity"},
		{"tiny premium", func(o *OpenTrade) { o.Premium = 0.009 }, "openPremium"},
		{"negative commission", func(o *OpenTrade) { o.Commission = ptr(-0.01) }, "openCommission"},
		{"bad trade date", func(o *OpenTrade) { o.TradeDate = "" }, "openTradeDate"},
		{"long notes", func(o *OpenTrade) { o.Notes = strings.Repeat("x", 1001) }, "notes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ot := longOpen()
			tt.mutate(&ot)
			fields := fieldSet(t, ot.Validate())
			if _, ok := fields[tt.field]; !ok || len(fields) != 1 {
				t.Fatalf("fields=%v want only %s", fields, tt.field)
			}
		})
	}
}

func TestCloseTradeValidate(t *testing.T) {
	ok := CloseTrade{Action: domain.BuyToClose, Premium: 0.01, Commission: ptr(0.0), TradeDate: "2025-03-10"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid close rejected: %v", err)
	}
	fields := fieldSet(t, CloseTrade{Action: "close", Premium: 0, Commission: ptr(-1.0), TradeDate: "x"}.Validate())
	for _, f := range []string{"closeAction", "closePremium", "closeCommission", "closeTradeDate"} {
		if _, ok := fields[f]; !ok {
			t.Fatalf("missing %s in %v", f, fields)
		}
	}
}

func TestTradeEditValidateOnlyPresentFields(t *testing.T) {
	if err := (TradeEdit{}).Validate(); err != nil {
		t.Fatalf("empty edit rejected: %v", err)
	}
	fields := fieldSet(t, TradeEdit{Symbol: ptr("tsla"), CloseCommission: ptr(-1.0)}.Validate())
	if len(fields) != 2 {
		t.Fatalf("fields=%v want symbol and closeCommission", fields)
	}
	if fields["symbol"] != "Symbol must be uppercase" {
		t.Fatalf("symbol message=%q", fields["symbol"])
	}
}

func TestPositionInputValidate(t *testing.T) {
	fields := fieldSet(t, PositionInput{}.ValidateCreate())
	for _, f := range []string{"ticker", "shares", "costBasis"} {
		if _, ok := fields[f]; !ok {
			t.Fatalf("create without %s accepted: %v", f, fields)
		}
	}

	in := PositionInput{Ticker: ptr("NVDA"), Shares: ptr(1.5), CostBasis: ptr(300.0)}
	if err := in.ValidateCreate(); err != nil {
		t.Fatalf("valid position rejected: %v", err)
	}

	if err := (PositionInput{}).ValidateUpdate(); err != nil {
		t.Fatalf("empty update rejected: %v", err)
	}
	fields = fieldSet(t, PositionInput{Ticker: ptr("   "), CurrentPrice: ptr(0.0)}.ValidateUpdate())
	if _, ok := fields["ticker"]; !ok {
		t.Fatalf("blank ticker accepted: %v", fields)
	}
	if _, ok := fields["currentPrice"]; !ok {
		t.Fatalf("zero price accepted: %v", fields)
	}
}

func TestValidatePrices(t *testing.T) {
	fields := fieldSet(t, ValidatePrices(nil))
	if fields["prices"] != "Prices array is required" {
		t.Fatalf("fields=%v", fields)
	}

	fields = fieldSet(t, ValidatePrices([]domain.PriceQuote{
		{Ticker: "AAPL", CurrentPrice: 200},
		{Ticker: "", CurrentPrice: -1},
	}))
	if _, ok := fields["prices[1].ticker"]; !ok {
		t.Fatalf("fields=%v want prices[1].ticker", fields)
	}
	if _, ok := fields["prices[1].currentPrice"]; !ok {
		t.Fatalf("fields=%v want prices[1].currentPrice", fields)
	}
	if len(fields) != 2 {
		t.Fatalf("fields=%v want 2", fields)
	}

	if err := ValidatePrices([]domain.PriceQuote{{Ticker: "AAPL", CurrentPrice: 1}}); err != nil {
		t.Fatalf("valid prices rejected: %v", err)
	}
}

func TestPortfolioInputValidate(t *testing.T) {
	if _, ok := fieldSet(t, PortfolioInput{}.ValidateCreate())["name"]; !ok {
		t.Fatal("create without name accepted")
	}
	if err := (PortfolioInput{Name: ptr("Income")}).ValidateCreate(); err != nil {
		t.Fatalf("valid portfolio rejected: %v", err)
	}
	fields := fieldSet(t, PortfolioInput{
		Name:        ptr(strings.Repeat("p", 101)),
		Description: ptr(strings.Repeat("d", 501)),
	}.ValidateUpdate())
	if len(fields) != 2 {
		t.Fatalf("fields=%v want name and description", fields)
	}
	if _, ok := fieldSet(t, PortfolioInput{Name: ptr("")}.ValidateUpdate())["name"]; !ok {
		t.Fatal("empty rename accepted")
	}
}

func TestCommissionRequired(t *testing.T) {
	o := longOpen()
	o.Commission = nil
	fields := fieldSet(t, o.Validate())
	if fields["openCommission"] != "Open commission is required and must be a number" {
		t.Fatalf("fields=%v", fields)
	}

	fields = fieldSet(t, CloseTrade{Action: domain.SellToClose, Premium: 1, TradeDate: "2025-03-10"}.Validate())
	if fields["closeCommission"] != "Close commission is required and must be a number" || len(fields) != 1 {
		t.Fatalf("fields=%v", fields)
	}
}
