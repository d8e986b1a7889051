package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/optionsdesk/internal/auth"
	"github.com/alanyoungcy/optionsdesk/internal/cache/local"
	"github.com/alanyoungcy/optionsdesk/internal/domain"
	"github.com/alanyoungcy/optionsdesk/internal/server/handler"
	"github.com/alanyoungcy/optionsdesk/internal/service"
	"github.com/alanyoungcy/optionsdesk/internal/store/memory"
)

type testAPI struct {
	t       *testing.T
	handler http.Handler
	jwt     *auth.JWT
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memory.New()
	bus := local.NewEventBus()
	blacklist := local.NewTokenBlacklist()

	j, err := auth.New(auth.Config{Secret: "test-secret", Issuer: "issuer", Audience: "app"})
	if err != nil {
		t.Fatalf("auth: %v", err)
	}

	trades := service.NewTradeService(st.Trades(), st.Portfolios(), bus, st.Audit(), logger)
	portfolios := service.NewPortfolioService(st.Portfolios(), st.Positions(), st.Trades(), local.NewLockManager(), bus, st.Audit(), logger)
	positions := service.NewPositionService(st.Positions(), st.Portfolios(), bus, st.Audit(), logger)
	exports := service.NewExportService(st.Trades(), nil, nil, st.Audit(), logger)

	h := Routes(
		Config{RateLimit: 1000, RateLimitWindow: time.Minute},
		Handlers{
			Health:     handler.NewHealthHandler(nil, logger),
			Trades:     handler.NewTradeHandler(trades, logger),
			Portfolios: handler.NewPortfolioHandler(portfolios, logger),
			Positions:  handler.NewPositionHandler(positions, logger),
			Exports:    handler.NewExportHandler(exports, logger),
			Auth:       handler.NewAuthHandler(blacklist, logger),
		},
		Security{Verifier: j, Blacklist: blacklist, Limiter: local.NewRateLimiter()},
		nil,
		logger,
	)
	return &testAPI{t: t, handler: h, jwt: j}
}

func (a *testAPI) token(userID string, role domain.Role) string {
	a.t.Helper()
	tok, _, err := a.jwt.Sign(auth.Claims{UserID: userID, Email: userID + "@example.com", Role: role})
	if err != nil {
		a.t.Fatalf("sign: %v", err)
	}
	return tok
}

func (a *testAPI) do(method, path, token, body string) *httptest.ResponseRecorder {
	a.t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

// fieldErrors collects the field names of a validation error body.
func fieldErrors(t *testing.T, rec *httptest.ResponseRecorder) map[string]bool {
	t.Helper()
	body := decode(t, rec)
	if body["code"] != "VALIDATION_ERROR" {
		t.Fatalf("code=%v want=VALIDATION_ERROR body=%v", body["code"], body)
	}
	fields := map[string]bool{}
	details, _ := body["details"].([]any)
	for _, d := range details {
		fields[d.(map[string]any)["field"].(string)] = true
	}
	return fields
}

func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status=%d want=%d body=%s", rec.Code, status, rec.Body.String())
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

const openBody = `{"symbol":"AAPL","optionType":"call","strikePrice":190,"expirationDate":"2025-06-20",
"openAction":"buy_to_open","openQuantity":1,"openPremium":2.5,"openCommission":0.65,"openTradeDate":"2025-02-01"}`

func TestHealthIsPublic(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodGet, "/api/health", "", "")
	wantStatus(t, rec, http.StatusOK)
	if got := decode(t, rec)["status"]; got != "ok" {
		t.Fatalf("status=%v want=ok", got)
	}
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t)
	cases := []struct {
		name  string
		token string
		msg   string
	}{
		{"missing", "", "Authorization token is required"},
		{"garbage", "not-a-jwt", "Invalid or expired token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := api.do(http.MethodGet, "/api/trades", tc.token, "")
			wantStatus(t, rec, http.StatusUnauthorized)
			if got := decode(t, rec)["error"]; got != tc.msg {
				t.Fatalf("error=%v want=%v", got, tc.msg)
			}
		})
	}
}

func TestTradeLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	alice := api.token("alice", domain.RoleUser)

	rec := api.do(http.MethodPost, "/api/trades", alice, openBody)
	wantStatus(t, rec, http.StatusCreated)
	created := decode(t, rec)
	id := created["id"].(string)
	if created["status"] != "open" || !near(created["openTotalCost"].(float64), 250.65) {
		t.Fatalf("created=%v", created)
	}
	if _, ok := created["closeAction"]; ok {
		t.Fatalf("open trade carries closing fields: %v", created)
	}

	rec = api.do(http.MethodPut, "/api/trades/"+id+"/close", alice,
		`{"closeAction":"buy_to_close","closePremium":4,"closeCommission":0.65,"closeTradeDate":"2025-02-10"}`)
	wantStatus(t, rec, http.StatusBadRequest)
	body := decode(t, rec)
	if body["code"] != "INVALID_CLOSING_ACTION" || body["error"] != "Invalid closing action. For buy_to_open, you must use sell_to_close" {
		t.Fatalf("body=%v", body)
	}

	closeBody := `{"closeAction":"sell_to_close","closePremium":4,"closeCommission":0.65,"closeTradeDate":"2025-02-10"}`
	rec = api.do(http.MethodPut, "/api/trades/"+id+"/close", alice, closeBody)
	wantStatus(t, rec, http.StatusOK)
	closed := decode(t, rec)
	if closed["status"] != "closed" || !near(closed["profitLoss"].(float64), 148.70) || closed["closeQuantity"].(float64) != 1 {
		t.Fatalf("closed=%v", closed)
	}

	rec = api.do(http.MethodPut, "/api/trades/"+id+"/close", alice, closeBody)
	wantStatus(t, rec, http.StatusBadRequest)
	if got := decode(t, rec)["code"]; got != "TRADE_ALREADY_CLOSED" {
		t.Fatalf("code=%v", got)
	}

	rec = api.do(http.MethodGet, "/api/trades?status=closed", alice, "")
	wantStatus(t, rec, http.StatusOK)
	var list []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil || len(list) != 1 {
		t.Fatalf("list=%s err=%v", rec.Body.String(), err)
	}

	rec = api.do(http.MethodDelete, "/api/trades/"+id, alice, "")
	wantStatus(t, rec, http.StatusNoContent)
	rec = api.do(http.MethodGet, "/api/trades/"+id, alice, "")
	wantStatus(t, rec, http.StatusNotFound)
	if got := decode(t, rec)["error"]; got != "Trade not found" {
		t.Fatalf("error=%v", got)
	}
}

func TestTradeRequestErrors(t *testing.T) {
	api := newTestAPI(t)
	alice := api.token("alice", domain.RoleUser)

	cases := []struct {
		name  string
		body  string
		error string
		field string
	}{
		{"empty body", "", "Request body is required", ""},
		{"bad json", "{", "Invalid JSON in request body", ""},
		{"fractional quantity", strings.Replace(openBody, `"openQuantity":1`, `"openQuantity":1.5`, 1), "Validation failed", "openQuantity"},
		{"lowercase symbol", strings.Replace(openBody, `"AAPL"`, `"aapl"`, 1), "Validation failed", "symbol"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := api.do(http.MethodPost, "/api/trades", alice, tc.body)
			wantStatus(t, rec, http.StatusBadRequest)
			body := decode(t, rec)
			if body["error"] != tc.error {
				t.Fatalf("error=%v want=%v", body["error"], tc.error)
			}
			if tc.field == "" {
				return
			}
			details, _ := body["details"].([]any)
			for _, d := range details {
				if d.(map[string]any)["field"] == tc.field {
					return
				}
			}
			t.Fatalf("details=%v want field %s", details, tc.field)
		})
	}

	rec := api.do(http.MethodGet, "/api/trades?status=pending", alice, "")
	wantStatus(t, rec, http.StatusBadRequest)
}

func TestTradeAccess(t *testing.T) {
	api := newTestAPI(t)
	alice := api.token("alice", domain.RoleUser)
	bob := api.token("bob", domain.RoleUser)
	root := api.token("root", domain.RoleAdmin)

	rec := api.do(http.MethodPost, "/api/trades", alice, openBody)
	wantStatus(t, rec, http.StatusCreated)
	id := decode(t, rec)["id"].(string)

	rec = api.do(http.MethodGet, "/api/trades/"+id, bob, "")
	wantStatus(t, rec, http.StatusForbidden)
	if got := decode(t, rec)["error"]; got != "Forbidden - You do not have access to this trade" {
		t.Fatalf("error=%v", got)
	}
	rec = api.do(http.MethodGet, "/api/trades/"+id, root, "")
	wantStatus(t, rec, http.StatusOK)

	rec = api.do(http.MethodGet, "/api/trades", root, "")
	wantStatus(t, rec, http.StatusOK)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("admin list=%s want only own trades", rec.Body.String())
	}
}

func TestTradePortfolioClearedWithNull(t *testing.T) {
	api := newTestAPI(t)
	alice := api.token("alice", domain.RoleUser)

	rec := api.do(http.MethodPost, "/api/portfolios", alice, `{"name":"Main"}`)
	wantStatus(t, rec, http.StatusCreated)
	pid := decode(t, rec)["id"].(string)

	rec = api.do(http.MethodPost, "/api/trades", alice, strings.Replace(openBody, "{", `{"portfolioId":"`+pid+`",`, 1))
	wantStatus(t, rec, http.StatusCreated)
	trade := decode(t, rec)
	if trade["portfolioId"] != pid {
		t.Fatalf("portfolioId=%v want=%s", trade["portfolioId"], pid)
	}

	rec = api.do(http.MethodPatch, "/api/trades/"+trade["id"].(string), alice, `{"portfolioId":null,"notes":"moved"}`)
	wantStatus(t, rec, http.StatusOK)
	updated := decode(t, rec)
	if _, ok := updated["portfolioId"]; ok || updated["notes"] != "moved" {
		t.Fatalf("updated=%v", updated)
	}
}

func TestPortfolioAndPositionsOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	alice := api.token("alice", domain.RoleUser)
	bob := api.token("bob", domain.RoleUser)

	rec := api.do(http.MethodPost, "/api/portfolios", alice, `{"name":"Main","isDefault":true}`)
	wantStatus(t, rec, http.StatusCreated)
	pid := decode(t, rec)["id"].(string)

	rec = api.do(http.MethodPost, "/api/portfolios", alice, `{"name":"Main"}`)
	wantStatus(t, rec, http.StatusConflict)
	if got := decode(t, rec)["error"]; got != "Portfolio with this name already exists" {
		t.Fatalf("error=%v", got)
	}

	rec = api.do(http.MethodGet, "/api/portfolios/default", alice, "")
	wantStatus(t, rec, http.StatusOK)
	if got := decode(t, rec)["id"]; got != pid {
		t.Fatalf("default=%v want=%s", got, pid)
	}

	positions := "/api/portfolios/" + pid + "/positions"
	rec = api.do(http.MethodPost, positions, alice, `{"ticker":"msft","shares":10,"costBasis":4000}`)
	wantStatus(t, rec, http.StatusCreated)
	pos := decode(t, rec)
	if pos["ticker"] != "MSFT" || !near(pos["averageCost"].(float64), 400) {
		t.Fatalf("position=%v", pos)
	}

	rec = api.do(http.MethodPost, positions, bob, `{"ticker":"AAPL","shares":1,"costBasis":1}`)
	wantStatus(t, rec, http.StatusForbidden)

	rec = api.do(http.MethodPatch, positions+"/prices", alice, `{"prices":[{"ticker":"MSFT","currentPrice":450},{"ticker":"GOOG","currentPrice":1}]}`)
	wantStatus(t, rec, http.StatusOK)
	res := decode(t, rec)
	if res["updated"].(float64) != 1 {
		t.Fatalf("prices=%v", res)
	}

	rec = api.do(http.MethodGet, "/api/portfolios/"+pid+"?includeMetrics=true", alice, "")
	wantStatus(t, rec, http.StatusOK)
	detail := decode(t, rec)
	metrics := detail["metrics"].(map[string]any)
	if !near(metrics["totalUnrealizedPL"].(float64), 500) || !near(metrics["totalUnrealizedPLPercent"].(float64), 12.5) {
		t.Fatalf("metrics=%v", metrics)
	}
	if _, ok := detail["positions"]; ok {
		t.Fatalf("positions included without includePositions: %v", detail)
	}

	rec = api.do(http.MethodDelete, "/api/portfolios/"+pid, alice, "")
	wantStatus(t, rec, http.StatusNoContent)
	rec = api.do(http.MethodGet, "/api/positions/"+pos["id"].(string), alice, "")
	wantStatus(t, rec, http.StatusNotFound)
}

func TestLogoutRevokesToken(t *testing.T) {
	api := newTestAPI(t)
	alice := api.token("alice", domain.RoleUser)

	rec := api.do(http.MethodPost, "/api/auth/logout", alice, "")
	wantStatus(t, rec, http.StatusOK)

	rec = api.do(http.MethodGet, "/api/trades", alice, "")
	wantStatus(t, rec, http.StatusUnauthorized)
	if got := decode(t, rec)["error"]; got != "Token has been revoked" {
		t.Fatalf("error=%v", got)
	}
}

func TestExportUnavailableWithoutStorage(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodPost, "/api/trades/export", api.token("alice", domain.RoleUser), "")
	wantStatus(t, rec, http.StatusServiceUnavailable)
	if got := decode(t, rec)["error"]; got != "Trade exports are not configured" {
		t.Fatalf("error=%v", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/trades", bytes.NewReader(nil))
	req.Header.Set("Origin", "https://desk.example.com")
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	wantStatus(t, rec, http.StatusNoContent)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://desk.example.com" {
		t.Fatalf("allow-origin=%q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "PUT") {
		t.Fatalf("allow-methods=%q want PUT", got)
	}
}

func TestTradeAmountsOutOfRange(t *testing.T) {
	api := newTestAPI(t)
	alice := api.token("alice", domain.RoleUser)

	rec := api.do(http.MethodPost, "/api/trades", alice, strings.Replace(openBody, `"openPremium":2.5`, `"openPremium":1e307`, 1))
	wantStatus(t, rec, http.StatusBadRequest)
	if fields := fieldErrors(t, rec); !fields["openTotalCost"] {
		t.Fatalf("fields=%v want openTotalCost", fields)
	}

	rec = api.do(http.MethodGet, "/api/trades", alice, "")
	wantStatus(t, rec, http.StatusOK)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("list=%s want no stored trade", rec.Body.String())
	}

	rec = api.do(http.MethodPost, "/api/trades", alice, openBody)
	wantStatus(t, rec, http.StatusCreated)
	id := decode(t, rec)["id"].(string)
	rec = api.do(http.MethodPut, "/api/trades/"+id+"/close", alice,
		`{"closeAction":"sell_to_close","closePremium":1e307,"closeCommission":0,"closeTradeDate":"2025-02-10"}`)
	wantStatus(t, rec, http.StatusBadRequest)
	if fields := fieldErrors(t, rec); !fields["closeTotalCost"] {
		t.Fatalf("fields=%v want closeTotalCost", fields)
	}
	rec = api.do(http.MethodGet, "/api/trades/"+id, alice, "")
	wantStatus(t, rec, http.StatusOK)
	if got := decode(t, rec)["status"]; got != "open" {
		t.Fatalf("status=%v want=open", got)
	}
}

func TestTradeCommissionRequired(t *testing.T) {
	api := newTestAPI(t)
	alice := api.token("alice", domain.RoleUser)

	rec := api.do(http.MethodPost, "/api/trades", alice, strings.Replace(openBody, `,"openCommission":0.65`, "", 1))
	wantStatus(t, rec, http.StatusBadRequest)
	if fields := fieldErrors(t, rec); !fields["openCommission"] {
		t.Fatalf("fields=%v want openCommission", fields)
	}

	rec = api.do(http.MethodPost, "/api/trades", alice, openBody)
	wantStatus(t, rec, http.StatusCreated)
	id := decode(t, rec)["id"].(string)
	rec = api.do(http.MethodPut, "/api/trades/"+id+"/close", alice,
		`{"closeAction":"sell_to_close","closePremium":4,"closeTradeDate":"2025-02-10"}`)
	wantStatus(t, rec, http.StatusBadRequest)
	if fields := fieldErrors(t, rec); !fields["closeCommission"] {
		t.Fatalf("fields=%v want closeCommission", fields)
	}
}

func TestUpdateRoutesAcceptPutAndPatch(t *testing.T) {
	api := newTestAPI(t)
	alice := api.token("alice", domain.RoleUser)

	rec := api.do(http.MethodPost, "/api/trades", alice, openBody)
	wantStatus(t, rec, http.StatusCreated)
	tradeID := decode(t, rec)["id"].(string)

	rec = api.do(http.MethodPost, "/api/portfolios", alice, `{"name":"Main"}`)
	wantStatus(t, rec, http.StatusCreated)
	pid := decode(t, rec)["id"].(string)

	rec = api.do(http.MethodPost, "/api/portfolios/"+pid+"/positions", alice, `{"ticker":"MSFT","shares":10,"costBasis":4000}`)
	wantStatus(t, rec, http.StatusCreated)
	posID := decode(t, rec)["id"].(string)

	for _, method := range []string{http.MethodPut, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			rec := api.do(method, "/api/trades/"+tradeID, alice, `{"notes":"`+method+`"}`)
			wantStatus(t, rec, http.StatusOK)
			rec = api.do(method, "/api/portfolios/"+pid, alice, `{"description":"`+method+`"}`)
			wantStatus(t, rec, http.StatusOK)
			rec = api.do(method, "/api/positions/"+posID, alice, `{"notes":"`+method+`"}`)
			wantStatus(t, rec, http.StatusOK)
		})
	}
}
