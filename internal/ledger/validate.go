package ledger

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
)

const (
	minPremium        = 0.01
	maxSymbolLen      = 10
	maxNotesLen       = 1000
	maxPortfolioName  = 100
	maxPortfolioDescr = 500
)

func checkSymbol(v *domain.ValidationError, field, label, s string) {
	n := utf8.RuneCountInString(s)
	switch {
	case n < 1 || n > maxSymbolLen:
		v.Add(field, fmt.Sprintf("%s must be 1-%d characters", label, maxSymbolLen))
	case s != strings.ToUpper(s):
		v.Add(field, label+" must be uppercase")
	}
}

func checkOptionType(v *domain.ValidationError, t domain.OptionType) {
	if !t.Valid() {
		v.Add("optionType", `Option type must be "call" or "put"`)
	}
}

func checkStrike(v *domain.ValidationError, strike float64) {
	if strike <= 0 {
		v.Add("strikePrice", "Strike price must be greater than 0")
	}
}

func checkDate(v *domain.ValidationError, field, label string, d domain.Date) {
	if !d.Valid() {
		v.Add(field, label+" must be in YYYY-MM-DD format")
	}
}

func checkOpenAction(v *domain.ValidationError, a domain.OpeningAction) {
	if !a.Valid() {
		v.Add("openAction", `Open action must be "buy_to_open" or "sell_to_open"`)
	}
}

func checkCloseAction(v *domain.ValidationError, a domain.ClosingAction) {
	if !a.Valid() {
		v.Add("closeAction", `Close action must be "buy_to_close" or "sell_to_close"`)
	}
}

func checkQuantity(v *domain.ValidationError, q int) {
	if q <= 0 {
		v.Add("openQuantity", "Open quantity must be a positive integer")
	}
}

func checkPremium(v *domain.ValidationError, field, label string, p float64) {
	if p < minPremium {
		v.Add(field, label+" must be at least 0.01")
	}
}

func checkCommission(v *domain.ValidationError, field, label string, c float64) {
	if c < 0 {
		v.Add(field, label+" must be 0 or greater")
	}
}

func checkRequiredCommission(v *domain.ValidationError, field, label string, c *float64) {
	if c == nil {
		v.Add(field, label+" is required and must be a number")
		return
	}
	checkCommission(v, field, label, *c)
}

func checkNotes(v *domain.ValidationError, notes string) {
	if utf8.RuneCountInString(notes) > maxNotesLen {
		v.Add("notes", "Notes must be 1000 characters or less")
	}
}

// Validate checks every field of a trade being opened.
func (o OpenTrade) Validate() error {
	v := &domain.ValidationError{}
	checkSymbol(v, "symbol", "Symbol", o.Symbol)
	checkOptionType(v, o.OptionType)
	checkStrike(v, o.StrikePrice)
	checkDate(v, "expirationDate", "Expiration date", o.ExpirationDate)
	checkOpenAction(v, o.Action)
	checkQuantity(v, o.Quantity)
	checkPremium(v, "openPremium", "Open premium", o.Premium)
	checkRequiredCommission(v, "openCommission", "Open commission", o.Commission)
	checkDate(v, "openTradeDate", "Open trade date", o.TradeDate)
	checkNotes(v, o.Notes)
	return v.Err()
}

// Validate checks every field of a closing request.
func (c CloseTrade) Validate() error {
	v := &domain.ValidationError{}
	checkCloseAction(v, c.Action)
	checkPremium(v, "closePremium", "Close premium", c.Premium)
	checkRequiredCommission(v, "closeCommission", "Close commission", c.Commission)
	checkDate(v, "closeTradeDate", "Close trade date", c.TradeDate)
	return v.Err()
}

// Validate checks the fields present in an edit.
func (e TradeEdit) Validate() error {
	v := &domain.ValidationError{}
	if e.Symbol != nil {
		checkSymbol(v, "symbol", "Symbol", *e.Symbol)
	}
	if e.OptionType != nil {
		checkOptionType(v, *e.OptionType)
	}
	if e.StrikePrice != nil {
		checkStrike(v, *e.StrikePrice)
	}
	if e.ExpirationDate != nil {
		checkDate(v, "expirationDate", "Expiration date", *e.ExpirationDate)
	}
	if e.OpenAction != nil {
		checkOpenAction(v, *e.OpenAction)
	}
	if e.OpenQuantity != nil {
		checkQuantity(v, *e.OpenQuantity)
	}
	if e.OpenPremium != nil {
		checkPremium(v, "openPremium", "Open premium", *e.OpenPremium)
	}
	if e.OpenCommission != nil {
		checkCommission(v, "openCommission", "Open commission", *e.OpenCommission)
	}
	if e.OpenTradeDate != nil {
		checkDate(v, "openTradeDate", "Open trade date", *e.OpenTradeDate)
	}
	if e.Notes != nil {
		checkNotes(v, *e.Notes)
	}
	if e.CloseAction != nil {
		checkCloseAction(v, *e.CloseAction)
	}
	if e.ClosePremium != nil {
		checkPremium(v, "closePremium", "Close premium", *e.ClosePremium)
	}
	if e.CloseCommission != nil {
		checkCommission(v, "closeCommission", "Close commission", *e.CloseCommission)
	}
	if e.CloseTradeDate != nil {
		checkDate(v, "closeTradeDate", "Close trade date", *e.CloseTradeDate)
	}
	return v.Err()
}

// PositionInput carries the caller-editable fields of a position. Nil
// fields are left unchanged on update and rejected as missing on create
// where required.
type PositionInput struct {
	Ticker       *string
	Shares       *float64
	CostBasis    *float64
	CurrentPrice *float64
	Notes        *string
}

// ValidateCreate checks a new position's fields.
func (in PositionInput) ValidateCreate() error {
	v := &domain.ValidationError{}
	if in.Ticker == nil {
		v.Add("ticker", "Ticker is required")
	}
	if in.Shares == nil {
		v.Add("shares", "Shares is required")
	}
	if in.CostBasis == nil {
		v.Add("costBasis", "Cost basis is required")
	}
	in.check(v)
	return v.Err()
}

// ValidateUpdate checks the fields present in a position update.
func (in PositionInput) ValidateUpdate() error {
	v := &domain.ValidationError{}
	in.check(v)
	return v.Err()
}

func (in PositionInput) check(v *domain.ValidationError) {
	if in.Ticker != nil {
		n := utf8.RuneCountInString(strings.TrimSpace(*in.Ticker))
		if n < 1 || n > maxSymbolLen {
			v.Add("ticker", "Ticker must be between 1 and 10 characters")
		}
	}
	if in.Shares != nil && *in.Shares <= 0 {
		v.Add("shares", "Shares must be greater than 0")
	}
	if in.CostBasis != nil && *in.CostBasis <= 0 {
		v.Add("costBasis", "Cost basis must be greater than 0")
	}
	if in.CurrentPrice != nil && *in.CurrentPrice <= 0 {
		v.Add("currentPrice", "Current price must be greater than 0")
	}
	if in.Notes != nil && utf8.RuneCountInString(*in.Notes) > maxNotesLen {
		v.Add("notes", "Notes must not exceed 1000 characters")
	}
}

// ValidatePrices checks a bulk price update.
func ValidatePrices(prices []domain.PriceQuote) error {
	v := &domain.ValidationError{}
	if len(prices) == 0 {
		v.Add("prices", "Prices array is required")
		return v
	}
	for i, p := range prices {
		if strings.TrimSpace(p.Ticker) == "" {
			v.Add(fmt.Sprintf("prices[%d].ticker", i), "Ticker is required and must be a string")
		}
		if p.CurrentPrice <= 0 {
			v.Add(fmt.Sprintf("prices[%d].currentPrice", i), "Current price is required and must be greater than 0")
		}
	}
	return v.Err()
}

// PortfolioInput carries the caller-editable fields of a portfolio.
type PortfolioInput struct {
	Name        *string
	Description *string
	IsActive    *bool
	IsDefault   *bool
}

// ValidateCreate checks a new portfolio's fields.
func (in PortfolioInput) ValidateCreate() error {
	v := &domain.ValidationError{}
	if in.Name == nil || *in.Name == "" {
		v.Add("name", "Name is required")
	} else {
		checkPortfolioName(v, *in.Name)
	}
	checkDescription(v, in.Description)
	return v.Err()
}

// ValidateUpdate checks the fields present in a portfolio update.
func (in PortfolioInput) ValidateUpdate() error {
	v := &domain.ValidationError{}
	if in.Name != nil {
		checkPortfolioName(v, *in.Name)
	}
	checkDescription(v, in.Description)
	return v.Err()
}

func checkPortfolioName(v *domain.ValidationError, name string) {
	n := utf8.RuneCountInString(name)
	if n < 1 || n > maxPortfolioName {
		v.Add("name", "Name must be between 1 and 100 characters")
	}
}

func checkDescription(v *domain.ValidationError, d *string) {
	if d != nil && utf8.RuneCountInString(*d) > maxPortfolioDescr {
		v.Add("description", "Description must not exceed 500 characters")
	}
}
