package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
)

func TestWriteServiceError(t *testing.T) {
	v := &domain.ValidationError{}
	v.Add("strikePrice", "Strike price must be greater than 0")

	cases := []struct {
		name   string
		err    error
		status int
		code   string
		msg    string
	}{
		{"validation", v, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed"},
		{"transition", &domain.TransitionError{Open: domain.SellToOpen, Close: domain.SellToClose, Expected: domain.BuyToClose},
			http.StatusBadRequest, "INVALID_CLOSING_ACTION", "Invalid closing action. For sell_to_open, you must use buy_to_close"},
		{"user not found", domain.Reject(domain.ErrNotFound, "Trade not found"), http.StatusNotFound, "NOT_FOUND", "Trade not found"},
		{"coded", domain.RejectCode(domain.ErrInvalidState, "TRADE_ALREADY_CLOSED", "Trade is already closed"),
			http.StatusBadRequest, "TRADE_ALREADY_CLOSED", "Trade is already closed"},
		{"wrapped sentinel", fmt.Errorf("store: %w", domain.ErrNotFound), http.StatusNotFound, "NOT_FOUND", "Not found"},
		{"lock", domain.ErrLockHeld, http.StatusConflict, "CONFLICT", "Resource is busy"},
		{"unavailable", domain.Reject(domain.ErrUnavailable, "off"), http.StatusServiceUnavailable, "UNAVAILABLE", "off"},
		{"internal", errors.New("pg: connection refused"), http.StatusInternalServerError, "", "Internal server error"},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/api/trades", nil), logger, tc.err)
			if rec.Code != tc.status {
				t.Fatalf("status=%d want=%d", rec.Code, tc.status)
			}
			var body errorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Code != tc.code || body.Error != tc.msg {
				t.Fatalf("body=%+v want code=%s msg=%s", body, tc.code, tc.msg)
			}
		})
	}
}

func TestListPage(t *testing.T) {
	cases := []struct {
		query         string
		limit, offset int
	}{
		{"", 0, 0},
		{"limit=20&offset=40", 20, 40},
		{"limit=9999", 500, 0},
		{"limit=-1&offset=-5", 0, 0},
		{"limit=abc", 0, 0},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/api/trades?"+tc.query, nil)
		limit, offset := listPage(r)
		if limit != tc.limit || offset != tc.offset {
			t.Fatalf("query=%q limit=%d offset=%d want=%d,%d", tc.query, limit, offset, tc.limit, tc.offset)
		}
	}
}

func TestUpdateTradeRequestPortfolio(t *testing.T) {
	cases := []struct {
		body  string
		isNil bool
		want  string
		ok    bool
	}{
		{`{}`, true, "", true},
		{`{"portfolioId":null}`, false, "", true},
		{`{"portfolioId":"p1"}`, false, "p1", true},
		{`{"portfolioId":7}`, true, "", false},
	}
	for _, tc := range cases {
		var req updateTradeRequest
		if err := json.Unmarshal([]byte(tc.body), &req); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.body, err)
		}
		e, ok := req.edit()
		if ok != tc.ok {
			t.Fatalf("body=%s ok=%v want=%v", tc.body, ok, tc.ok)
		}
		if !ok {
			continue
		}
		if (e.PortfolioID == nil) != tc.isNil || (e.PortfolioID != nil && *e.PortfolioID != tc.want) {
			t.Fatalf("body=%s portfolioId=%v", tc.body, e.PortfolioID)
		}
	}
}

func TestWholeQuantity(t *testing.T) {
	cases := map[float64]int{3: 3, 1.5: 0, -2: -2, 1e12: 0}
	for in, want := range cases {
		if got := wholeQuantity(in); got != want {
			t.Fatalf("wholeQuantity(%v)=%d want=%d", in, got, want)
		}
	}
}
