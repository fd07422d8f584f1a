package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"

	"raffle/internal/auth"
	"raffle/internal/notify"
	"raffle/internal/oracle"
	"raffle/internal/payout"
	"raffle/internal/raffle"
	"raffle/internal/service"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type env struct {
	engine *gin.Engine
	clock  *fakeClock
	bank   *payout.Bank
	coord  *oracle.LocalCoordinator
	svc    *service.RaffleService
	jwt    auth.JWT
}

var escrowAddr = common.HexToAddress("0x000000000000000000000000000000000000dEaD")

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	e := &env{
		clock: &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		bank:  payout.NewBank(escrowAddr, nil),
		coord: oracle.NewLocalCoordinator(oracle.RequestParams{KeyHash: "0xkey", CallbackGasLimit: 1}, oracle.LocalOptions{}, nil),
		jwt:   auth.JWT{Secret: []byte("callback-secret"), TokenTTL: time.Minute},
	}
	r, err := raffle.New(raffle.Config{EntranceFee: uint256.NewInt(100), Interval: 30 * time.Second}, e.coord, e.bank, e.clock)
	if err != nil {
		t.Fatalf("raffle.New: %v", err)
	}
	e.svc = &service.RaffleService{Raffle: r, Escrow: e.bank, Sinks: notify.NewFanout(nil), Oracle: e.coord}
	e.coord.SetConsumer(e.svc.ConsumeWords)

	e.engine = gin.New()
	(&HealthHandler{Raffle: r, Bank: e.bank}).Register(e.engine)
	(&RaffleHandler{Service: e.svc, Decimals: 2}).Register(e.engine)
	(&OracleHandler{Service: e.svc, Local: e.coord, JWT: e.jwt, DevRoutes: true}).Register(e.engine)
	(&BankHandler{Bank: e.bank, FaucetEnabled: true, FaucetAmount: uint256.NewInt(1000), Decimals: 2}).Register(e.engine)
	(&SettingsHandler{Settings: &service.SystemSettingsService{}}).Register(e.engine)
	return e
}

func (e *env) do(t *testing.T, method, path string, body any, headers ...string) (int, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	var resp apiResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w.Code, resp
}

func hexAddr(n byte) string {
	var a common.Address
	a[19] = n
	return a.Hex()
}

func (e *env) fundAndEnter(t *testing.T, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		if code, resp := e.do(t, http.MethodPost, "/api/v1/bank/faucet", map[string]string{"address": hexAddr(byte(i))}); code != http.StatusOK {
			t.Fatalf("faucet: %d %s", code, resp.Message)
		}
		if code, resp := e.do(t, http.MethodPost, "/api/v1/raffle/enter", map[string]string{"participant": hexAddr(byte(i))}); code != http.StatusOK {
			t.Fatalf("enter: %d %s", code, resp.Message)
		}
	}
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("readyz=%d", w.Code)
	}
}

func TestReadyReportsEscrowShortfall(t *testing.T) {
	e := newEnv(t)
	e.fundAndEnter(t, 1)
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if w.Code != http.StatusOK || body["state"] != "OPEN" || body["players"].(float64) != 1 || body["escrow"] != "100" {
		t.Fatalf("ready code=%d body=%v", w.Code, body)
	}

	e.svc.Escrow = nil
	if _, err := e.svc.Enter(context.Background(), common.HexToAddress(hexAddr(7)), uint256.NewInt(100)); err != nil {
		t.Fatalf("enter: %v", err)
	}
	w = httptest.NewRecorder()
	e.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	body = map[string]any{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if w.Code != http.StatusServiceUnavailable || body["status"] != "escrow_shortfall" || body["pool"] != "200" {
		t.Fatalf("shortfall code=%d body=%v", w.Code, body)
	}
}

func TestStatusEndpoint(t *testing.T) {
	e := newEnv(t)
	e.fundAndEnter(t, 2)
	code, resp := e.do(t, http.MethodGet, "/api/v1/raffle", nil)
	if code != http.StatusOK {
		t.Fatalf("code=%d", code)
	}
	data := resp.Data.(map[string]any)
	if data["state"] != "OPEN" || data["num_players"].(float64) != 2 {
		t.Fatalf("data=%v", data)
	}
	balance := data["balance"].(map[string]any)
	if balance["raw"] != "200" || balance["display"] != "2" {
		t.Fatalf("balance=%v", balance)
	}
}

func TestEnterErrors(t *testing.T) {
	e := newEnv(t)
	cases := []struct {
		name string
		body map[string]string
		want int
	}{
		{"bad address", map[string]string{"participant": "nope"}, http.StatusBadRequest},
		{"bad amount", map[string]string{"participant": hexAddr(1), "amount": "1.5"}, http.StatusBadRequest},
		{"low fee", map[string]string{"participant": hexAddr(1), "amount": "99"}, http.StatusBadRequest},
		{"unfunded", map[string]string{"participant": hexAddr(1)}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if code, _ := e.do(t, http.MethodPost, "/api/v1/raffle/enter", tc.body); code != tc.want {
				t.Fatalf("code=%d want %d", code, tc.want)
			}
		})
	}
}

func TestPlayerEndpoint(t *testing.T) {
	e := newEnv(t)
	e.fundAndEnter(t, 1)
	code, resp := e.do(t, http.MethodGet, "/api/v1/raffle/players/0", nil)
	if code != http.StatusOK || resp.Data.(map[string]any)["participant"] != hexAddr(1) {
		t.Fatalf("code=%d data=%v", code, resp.Data)
	}
	if code, _ := e.do(t, http.MethodGet, "/api/v1/raffle/players/1", nil); code != http.StatusNotFound {
		t.Fatalf("out of range code=%d want 404", code)
	}
	if code, _ := e.do(t, http.MethodGet, "/api/v1/raffle/players/x", nil); code != http.StatusBadRequest {
		t.Fatalf("bad index code=%d want 400", code)
	}
}

func TestUpkeepAndLocalFulfill(t *testing.T) {
	e := newEnv(t)
	code, resp := e.do(t, http.MethodPost, "/api/v1/raffle/upkeep", nil)
	if code != http.StatusConflict || resp.Meta["num_players"].(float64) != 0 {
		t.Fatalf("empty upkeep: code=%d meta=%v", code, resp.Meta)
	}

	e.fundAndEnter(t, 3)
	e.clock.now = e.clock.now.Add(30 * time.Second)
	code, resp = e.do(t, http.MethodGet, "/api/v1/raffle/upkeep", nil)
	if code != http.StatusOK || resp.Data.(map[string]any)["upkeep_needed"] != true {
		t.Fatalf("check upkeep: code=%d data=%v", code, resp.Data)
	}
	code, resp = e.do(t, http.MethodPost, "/api/v1/raffle/upkeep", nil)
	if code != http.StatusOK {
		t.Fatalf("perform upkeep: code=%d msg=%s", code, resp.Message)
	}
	requestID := resp.Data.(map[string]any)["request_id"].(string)

	if code, _ := e.do(t, http.MethodPost, "/api/v1/raffle/upkeep", nil); code != http.StatusConflict {
		t.Fatalf("second upkeep code=%d want 409", code)
	}
	if code, _ := e.do(t, http.MethodPost, "/api/v1/raffle/enter", map[string]string{"participant": hexAddr(1)}); code != http.StatusConflict {
		t.Fatalf("enter while calculating code=%d want 409", code)
	}

	code, resp = e.do(t, http.MethodPost, "/api/v1/oracle/local/fulfill", map[string]any{
		"request_id":   requestID,
		"random_words": []string{"0x07"},
	})
	if code != http.StatusOK {
		t.Fatalf("local fulfill code=%d msg=%s", code, resp.Message)
	}
	if got := resp.Data.(map[string]any)["recent_winner"]; got != hexAddr(2) {
		t.Fatalf("recent_winner=%v want %s", got, hexAddr(2))
	}
	if got := e.bank.BalanceOf(common.HexToAddress(hexAddr(2))).Uint64(); got != 300+900 {
		t.Fatalf("winner balance=%d want 1200", got)
	}
	if code, _ := e.do(t, http.MethodPost, "/api/v1/oracle/local/fulfill", map[string]any{"request_id": requestID}); code != http.StatusNotFound {
		t.Fatalf("repeat local fulfill code=%d want 404", code)
	}
}

func TestOracleCallbackAuth(t *testing.T) {
	e := newEnv(t)
	e.fundAndEnter(t, 2)
	e.clock.now = e.clock.now.Add(time.Minute)
	requestID, err := e.svc.PerformUpkeep(context.Background())
	if err != nil {
		t.Fatalf("upkeep: %v", err)
	}
	body := map[string]any{"request_id": requestID, "random_words": []string{"5"}}

	if code, _ := e.do(t, http.MethodPost, CallbackPath, body); code != http.StatusUnauthorized {
		t.Fatalf("no token code=%d want 401", code)
	}
	tok, _ := e.jwt.OracleToken("1")
	bearer := "Bearer " + tok

	forged := map[string]any{"request_id": "forged", "random_words": []string{"5"}}
	if code, _ := e.do(t, http.MethodPost, CallbackPath, forged, "Authorization", bearer); code != http.StatusForbidden {
		t.Fatalf("forged id code=%d want 403", code)
	}
	if code, _ := e.do(t, http.MethodPost, CallbackPath, map[string]any{"request_id": requestID}, "Authorization", bearer); code != http.StatusBadRequest {
		t.Fatalf("missing words code=%d want 400", code)
	}
	code, resp := e.do(t, http.MethodPost, CallbackPath, body, "Authorization", bearer)
	if code != http.StatusOK {
		t.Fatalf("callback code=%d msg=%s", code, resp.Message)
	}
	data := resp.Data.(map[string]any)
	if data["winner_index"].(float64) != 1 || data["amount"] != "200" {
		t.Fatalf("data=%v", data)
	}
}

func TestPayoutFailureMapsTo502(t *testing.T) {
	e := newEnv(t)
	e.fundAndEnter(t, 1)
	e.clock.now = e.clock.now.Add(time.Minute)
	requestID, _ := e.svc.PerformUpkeep(context.Background())
	if code, _ := e.do(t, http.MethodPost, "/api/v1/bank/halt", nil); code != http.StatusOK {
		t.Fatalf("halt code=%d", code)
	}
	body := map[string]any{"request_id": requestID, "random_words": []string{"3"}}
	if code, _ := e.do(t, http.MethodPost, "/api/v1/oracle/local/fulfill", body); code != http.StatusBadGateway {
		t.Fatalf("halted payout code=%d want 502", code)
	}
	mismatch := map[string]any{"request_id": requestID, "random_words": []string{"4"}}
	if code, _ := e.do(t, http.MethodPost, "/api/v1/oracle/local/fulfill", mismatch); code != http.StatusConflict {
		t.Fatalf("different value code=%d want 409", code)
	}
	_, _ = e.do(t, http.MethodPost, "/api/v1/bank/resume", nil)
	if code, _ := e.do(t, http.MethodPost, "/api/v1/oracle/local/fulfill", body); code != http.StatusOK {
		t.Fatalf("redelivery code=%d want 200", code)
	}
}

func TestPayoutWithUnderfundedEscrowMapsTo502(t *testing.T) {
	e := newEnv(t)
	e.svc.Escrow = nil
	if _, err := e.svc.Enter(context.Background(), common.HexToAddress(hexAddr(1)), uint256.NewInt(100)); err != nil {
		t.Fatalf("enter: %v", err)
	}
	e.clock.now = e.clock.now.Add(time.Minute)
	requestID, err := e.svc.PerformUpkeep(context.Background())
	if err != nil {
		t.Fatalf("upkeep: %v", err)
	}
	token, err := e.jwt.OracleToken("1")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	body := map[string]any{"request_id": requestID, "random_words": []string{"5"}}
	code, resp := e.do(t, http.MethodPost, CallbackPath, body, "Authorization", "Bearer "+token)
	if code != http.StatusBadGateway {
		t.Fatalf("code=%d want 502 (%s)", code, resp.Message)
	}
	if e.svc.Raffle.State() != raffle.StateCalculating {
		t.Fatalf("state=%s want CALCULATING after failed payout", e.svc.Raffle.State())
	}
}

func TestStatusForWrappedPayoutErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"insufficient escrow", fmt.Errorf("%w: %w", raffle.ErrPayoutFailed, payout.ErrInsufficientFunds), http.StatusBadGateway},
		{"halted", fmt.Errorf("%w: %w", raffle.ErrPayoutFailed, payout.ErrTransfersHalted), http.StatusBadGateway},
		{"unfunded entrant", fmt.Errorf("deposit: %w", payout.ErrInsufficientFunds), http.StatusBadRequest},
		{"self transfer", payout.ErrSelfTransfer, http.StatusBadRequest},
		{"stale request", raffle.ErrUnknownRequest, http.StatusForbidden},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("%s: status=%d want %d", tc.name, got, tc.want)
		}
	}
}

func TestLocalOracleRoutesNeedDevMode(t *testing.T) {
	e := newEnv(t)
	engine := gin.New()
	(&OracleHandler{Service: e.svc, Local: e.coord, JWT: e.jwt}).Register(engine)

	for _, path := range []string{"/api/v1/oracle/local/fulfill", "/api/v1/oracle/local/pending"} {
		method := http.MethodPost
		if path == "/api/v1/oracle/local/pending" {
			method = http.MethodGet
		}
		body := bytes.NewBufferString(`{"request_id":"x","random_words":["1"]}`)
		req := httptest.NewRequest(method, path, body)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s %s code=%d want 404", method, path, w.Code)
		}
	}
}

func TestEnterAsEscrowRejected(t *testing.T) {
	e := newEnv(t)
	code, _ := e.do(t, http.MethodPost, "/api/v1/raffle/enter", map[string]string{"participant": escrowAddr.Hex()})
	if code != http.StatusBadRequest {
		t.Fatalf("code=%d want 400", code)
	}
	if e.svc.Raffle.NumPlayers() != 0 {
		t.Fatalf("escrow account joined the round")
	}
}

func TestCancelDrawDisabled(t *testing.T) {
	e := newEnv(t)
	if code, _ := e.do(t, http.MethodPost, "/api/v1/raffle/draw/cancel", nil); code != http.StatusConflict {
		t.Fatalf("nothing outstanding code=%d want 409", code)
	}
}

func TestBankEndpoints(t *testing.T) {
	e := newEnv(t)
	code, resp := e.do(t, http.MethodPost, "/api/v1/bank/faucet", map[string]string{"address": hexAddr(9), "amount": "250"})
	if code != http.StatusOK {
		t.Fatalf("faucet code=%d", code)
	}
	code, resp = e.do(t, http.MethodGet, "/api/v1/bank/accounts/"+hexAddr(9), nil)
	balance := resp.Data.(map[string]any)["balance"].(map[string]any)
	if code != http.StatusOK || balance["raw"] != "250" || balance["display"] != "2.5" {
		t.Fatalf("account code=%d balance=%v", code, balance)
	}
	if code, _ := e.do(t, http.MethodPost, "/api/v1/bank/faucet", map[string]string{"address": escrowAddr.Hex()}); code != http.StatusBadRequest {
		t.Fatalf("escrow funding code=%d want 400", code)
	}
}

func TestSettingsEndpoints(t *testing.T) {
	e := newEnv(t)
	code, resp := e.do(t, http.MethodGet, "/api/v1/settings", nil)
	if code != http.StatusOK || len(resp.Data.([]any)) != 3 {
		t.Fatalf("list code=%d data=%v", code, resp.Data)
	}
	code, resp = e.do(t, http.MethodPut, "/api/v1/settings/keeper", map[string]bool{"enabled": false})
	if code != http.StatusOK || resp.Data.(map[string]any)["key"] != service.FeatureKeeper {
		t.Fatalf("put code=%d data=%v", code, resp.Data)
	}
	code, resp = e.do(t, http.MethodGet, "/api/v1/settings/feature.keeper", nil)
	if code != http.StatusOK || resp.Data.(map[string]any)["enabled"] != false {
		t.Fatalf("get code=%d data=%v", code, resp.Data)
	}
	if code, _ := e.do(t, http.MethodGet, "/api/v1/settings/nope", nil); code != http.StatusNotFound {
		t.Fatalf("unknown code=%d want 404", code)
	}
	if code, _ := e.do(t, http.MethodPut, "/api/v1/settings/keeper", map[string]string{}); code != http.StatusBadRequest {
		t.Fatalf("missing enabled code=%d want 400", code)
	}
}

func TestJournalDisabled(t *testing.T) {
	e := newEnv(t)
	if code, _ := e.do(t, http.MethodGet, "/api/v1/raffle/events", nil); code != http.StatusServiceUnavailable {
		t.Fatalf("code=%d want 503", code)
	}
}

func TestDrawLookupAndSinceFilter(t *testing.T) {
	e := newEnv(t)
	if code, _ := e.do(t, http.MethodGet, "/api/v1/raffle/draws/anything", nil); code != http.StatusServiceUnavailable {
		t.Fatalf("draw lookup without journal code=%d want 503", code)
	}

	repo := newMemRepo()
	e.svc.Repo = repo
	e.engine = gin.New()
	(&RaffleHandler{Service: e.svc, Repo: repo}).Register(e.engine)

	ctx := context.Background()
	for i := byte(1); i <= 2; i++ {
		addr := common.HexToAddress(hexAddr(i))
		if _, err := e.bank.Fund(addr, uint256.NewInt(1000)); err != nil {
			t.Fatalf("fund: %v", err)
		}
		if _, err := e.svc.Enter(ctx, addr, uint256.NewInt(100)); err != nil {
			t.Fatalf("enter: %v", err)
		}
	}
	e.clock.now = e.clock.now.Add(time.Minute)
	requestID, err := e.svc.PerformUpkeep(ctx)
	if err != nil {
		t.Fatalf("upkeep: %v", err)
	}
	if _, err := e.svc.Fulfill(ctx, requestID, uint256.NewInt(3)); err != nil {
		t.Fatalf("fulfill: %v", err)
	}

	code, resp := e.do(t, http.MethodGet, "/api/v1/raffle/draws/"+requestID, nil)
	if code != http.StatusOK {
		t.Fatalf("draw lookup code=%d msg=%s", code, resp.Message)
	}
	raw, _ := json.Marshal(resp.Data)
	var d struct {
		State  string  `json:"State"`
		Winner *string `json:"Winner"`
	}
	_ = json.Unmarshal(raw, &d)
	if d.State != "paid" || d.Winner == nil || *d.Winner != hexAddr(2) {
		t.Fatalf("draw=%s", raw)
	}
	if repo.txs != 1 {
		t.Fatalf("settlement transactions=%d want 1", repo.txs)
	}
	if code, _ := e.do(t, http.MethodGet, "/api/v1/raffle/draws/missing", nil); code != http.StatusNotFound {
		t.Fatalf("unknown draw code=%d want 404", code)
	}

	if code, _ := e.do(t, http.MethodGet, "/api/v1/raffle/events?since=yesterday", nil); code != http.StatusBadRequest {
		t.Fatalf("bad since code=%d want 400", code)
	}
	code, resp = e.do(t, http.MethodGet, "/api/v1/raffle/events?since=2025-12-31T00:00:00Z", nil)
	if code != http.StatusOK || resp.Meta["total"].(float64) != 4 {
		t.Fatalf("events since code=%d meta=%v", code, resp.Meta)
	}
	if repo.lastEvents.Since == nil || repo.lastEvents.Since.Year() != 2025 {
		t.Fatalf("since not forwarded: %+v", repo.lastEvents)
	}
	code, resp = e.do(t, http.MethodGet, "/api/v1/raffle/events?since=2030-01-01T00:00:00Z", nil)
	if code != http.StatusOK || resp.Meta["total"].(float64) != 0 {
		t.Fatalf("future since code=%d meta=%v", code, resp.Meta)
	}
}
