package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"raffle/internal/auth"
)

type recorded struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
}

func newTestServer(t *testing.T, status int, reply string) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{Method: r.Method, Path: r.URL.RequestURI(), Auth: r.Header.Get("Authorization")}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			_ = json.Unmarshal(b, &rec.Body)
		}
		calls = append(calls, rec)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestDispatchEnter(t *testing.T) {
	srv, calls := newTestServer(t, http.StatusOK, `{"code":0,"message":"ok","data":{"kind":"entered"},"meta":{"num_players":1}}`)
	c := &client{BaseURL: srv.URL, Token: "gw"}
	var out bytes.Buffer

	err := dispatch(c, &out, []string{"enter", "--participant", "0x00000000000000000000000000000000000000a1", "--amount", "100"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(*calls))
	}
	got := (*calls)[0]
	if got.Method != http.MethodPost || got.Path != "/api/v1/raffle/enter" {
		t.Fatalf("unexpected request %s %s", got.Method, got.Path)
	}
	if got.Auth != "Bearer gw" {
		t.Fatalf("unexpected auth header %q", got.Auth)
	}
	if got.Body["amount"] != "100" {
		t.Fatalf("unexpected body %#v", got.Body)
	}
	if !strings.Contains(out.String(), `"num_players": 1`) {
		t.Fatalf("meta missing from output: %s", out.String())
	}
}

func TestDispatchServerError(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusConflict, `{"code":409,"message":"raffle: upkeep not needed"}`)
	c := &client{BaseURL: srv.URL}

	err := dispatch(c, io.Discard, []string{"upkeep", "perform"})
	if err == nil || !strings.Contains(err.Error(), "http 409: raffle: upkeep not needed") {
		t.Fatalf("expected server message, got %v", err)
	}
}

func TestDispatchCallbackUsesOracleToken(t *testing.T) {
	srv, calls := newTestServer(t, http.StatusOK, `{"code":0,"message":"ok","data":{}}`)
	c := &client{BaseURL: srv.URL, Token: "gw"}

	err := dispatch(c, io.Discard, []string{"callback", "--request-id", "r1", "--word", "7", "--word", "0x08", "--oracle-token", "orc"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	got := (*calls)[0]
	if got.Path != "/api/v1/oracle/fulfill" || got.Auth != "Bearer orc" {
		t.Fatalf("unexpected request %s auth=%q", got.Path, got.Auth)
	}
	words, _ := got.Body["random_words"].([]any)
	if len(words) != 2 || words[0] != "7" || words[1] != "0x08" {
		t.Fatalf("unexpected words %#v", got.Body["random_words"])
	}
	if c.Token != "gw" {
		t.Fatalf("gateway token must not be replaced, got %q", c.Token)
	}
}

func TestDispatchEventsQuery(t *testing.T) {
	srv, calls := newTestServer(t, http.StatusOK, `{"code":0,"message":"ok","data":[]}`)
	c := &client{BaseURL: srv.URL}

	if err := dispatch(c, io.Discard, []string{"events", "--kind", "entered", "--round", "3", "--limit", "5"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got := (*calls)[0].Path; got != "/api/v1/raffle/events?kind=entered&limit=5&offset=0&round=3" {
		t.Fatalf("unexpected path %s", got)
	}
}

func TestDispatchDrawLookupAndSince(t *testing.T) {
	srv, calls := newTestServer(t, http.StatusOK, `{"code":0,"message":"ok","data":{}}`)
	c := &client{BaseURL: srv.URL}

	if err := dispatch(c, io.Discard, []string{"draw", "req-7"}); err != nil {
		t.Fatalf("dispatch draw: %v", err)
	}
	if got := (*calls)[0].Path; got != "/api/v1/raffle/draws/req-7" {
		t.Fatalf("unexpected path %s", got)
	}
	if err := dispatch(c, io.Discard, []string{"draw"}); err == nil {
		t.Fatal("expected missing request id error")
	}
	if err := dispatch(c, io.Discard, []string{"events", "--since", "2026-01-01T00:00:00Z"}); err != nil {
		t.Fatalf("dispatch events: %v", err)
	}
	if got := (*calls)[1].Path; got != "/api/v1/raffle/events?limit=20&offset=0&since=2026-01-01T00%3A00%3A00Z" {
		t.Fatalf("unexpected path %s", got)
	}
}

func TestDispatchSettingsToggle(t *testing.T) {
	srv, calls := newTestServer(t, http.StatusOK, `{"code":0,"message":"ok","data":{}}`)
	c := &client{BaseURL: srv.URL}

	if err := dispatch(c, io.Discard, []string{"settings", "keeper", "off"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	got := (*calls)[0]
	if got.Method != http.MethodPut || got.Body["enabled"] != false {
		t.Fatalf("unexpected request %#v", got)
	}
	if err := dispatch(c, io.Discard, []string{"settings", "keeper", "maybe"}); err == nil {
		t.Fatal("expected invalid switch value error")
	}
}

func TestDispatchTokenVerifies(t *testing.T) {
	var out bytes.Buffer
	err := dispatch(&client{}, &out, []string{"token", "--secret", "s3cret", "--subscription", "42"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	claims, err := auth.JWT{Secret: []byte("s3cret")}.Verify(resp.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Role != auth.RoleOracle || claims.SubscriptionID != "42" {
		t.Fatalf("unexpected claims %#v", claims)
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	if err := dispatch(&client{}, io.Discard, []string{"nope"}); err == nil {
		t.Fatal("expected error")
	}
}
