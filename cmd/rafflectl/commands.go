package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"raffle/internal/auth"
)

func usage(w io.Writer) {
	fmt.Fprint(w, `rafflectl <command> [flags]

Global Flags:
  --api-base    raffle service base URL (env: RAFFLE_API_BASE)
  --token       Bearer token (env: RAFFLE_TOKEN)

Commands:
  status                       current round, players and upkeep check
  enter    --participant --amount
  player   <index>
  upkeep   check|perform
  cancel                       cancel an expired draw
  pending                      local coordinator requests
  fulfill  --request-id [--word ...]
  callback --request-id --word [--oracle-token]
  faucet   --address [--amount]
  balance  <address>
  bank     halt|resume
  events   [--kind --round --since RFC3339 --limit]
  draws    [--state --limit]
  draw     <request_id>
  settings [key [on|off]]
  token    --secret [--subscription --ttl]
`)
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, strings.TrimSpace(v))
	return nil
}

func dispatch(c *client, out io.Writer, args []string) error {
	if len(args) == 0 {
		usage(os.Stderr)
		return errors.New("missing command")
	}
	switch args[0] {
	case "status":
		return show(c, out, http.MethodGet, "/api/v1/raffle", nil)

	case "enter":
		fs := flag.NewFlagSet("rafflectl enter", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		participant := fs.String("participant", "", "participant address")
		amount := fs.String("amount", "", "amount in minor units (default: entrance fee)")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if strings.TrimSpace(*participant) == "" {
			return errors.New("--participant required")
		}
		return show(c, out, http.MethodPost, "/api/v1/raffle/enter", map[string]string{
			"participant": strings.TrimSpace(*participant),
			"amount":      strings.TrimSpace(*amount),
		})

	case "player":
		if len(args) < 2 {
			return errors.New("player index required")
		}
		if _, err := strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("invalid index %q", args[1])
		}
		return show(c, out, http.MethodGet, "/api/v1/raffle/players/"+args[1], nil)

	case "upkeep":
		sub := "check"
		if len(args) > 1 {
			sub = args[1]
		}
		switch sub {
		case "check":
			return show(c, out, http.MethodGet, "/api/v1/raffle/upkeep", nil)
		case "perform":
			return show(c, out, http.MethodPost, "/api/v1/raffle/upkeep", nil)
		default:
			return fmt.Errorf("unknown upkeep subcommand: %s", sub)
		}

	case "cancel":
		return show(c, out, http.MethodPost, "/api/v1/raffle/draw/cancel", nil)

	case "pending":
		return show(c, out, http.MethodGet, "/api/v1/oracle/local/pending", nil)

	case "fulfill", "callback":
		fs := flag.NewFlagSet("rafflectl "+args[0], flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		requestID := fs.String("request-id", "", "outstanding request id")
		oracleToken := fs.String("oracle-token", "", "oracle callback token (callback only)")
		var words stringList
		fs.Var(&words, "word", "random word, decimal or 0x hex (repeatable)")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if strings.TrimSpace(*requestID) == "" {
			return errors.New("--request-id required")
		}
		body := map[string]any{"request_id": strings.TrimSpace(*requestID), "random_words": []string(words)}
		if args[0] == "fulfill" {
			return show(c, out, http.MethodPost, "/api/v1/oracle/local/fulfill", body)
		}
		if len(words) == 0 {
			return errors.New("--word required")
		}
		cb := *c
		if strings.TrimSpace(*oracleToken) != "" {
			cb.Token = strings.TrimSpace(*oracleToken)
		}
		return show(&cb, out, http.MethodPost, "/api/v1/oracle/fulfill", body)

	case "faucet":
		fs := flag.NewFlagSet("rafflectl faucet", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		address := fs.String("address", "", "account address")
		amount := fs.String("amount", "", "amount in minor units")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if strings.TrimSpace(*address) == "" {
			return errors.New("--address required")
		}
		return show(c, out, http.MethodPost, "/api/v1/bank/faucet", map[string]string{
			"address": strings.TrimSpace(*address),
			"amount":  strings.TrimSpace(*amount),
		})

	case "balance":
		if len(args) < 2 {
			return errors.New("address required")
		}
		return show(c, out, http.MethodGet, "/api/v1/bank/accounts/"+url.PathEscape(strings.TrimSpace(args[1])), nil)

	case "bank":
		if len(args) < 2 || (args[1] != "halt" && args[1] != "resume") {
			return errors.New("bank subcommand required: halt|resume")
		}
		return show(c, out, http.MethodPost, "/api/v1/bank/"+args[1], nil)

	case "events", "draws":
		fs := flag.NewFlagSet("rafflectl "+args[0], flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		kind := fs.String("kind", "", "observation kind (events)")
		round := fs.String("round", "", "round number (events)")
		state := fs.String("state", "", "draw state (draws)")
		since := fs.String("since", "", "RFC3339 lower bound (events)")
		limit := fs.Int("limit", 20, "limit")
		offset := fs.Int("offset", 0, "offset")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		q := url.Values{}
		q.Set("limit", strconv.Itoa(*limit))
		q.Set("offset", strconv.Itoa(*offset))
		if v := strings.TrimSpace(*kind); v != "" {
			q.Set("kind", v)
		}
		if v := strings.TrimSpace(*round); v != "" {
			q.Set("round", v)
		}
		if v := strings.TrimSpace(*state); v != "" {
			q.Set("state", v)
		}
		if v := strings.TrimSpace(*since); v != "" {
			q.Set("since", v)
		}
		return show(c, out, http.MethodGet, "/api/v1/raffle/"+args[0]+"?"+q.Encode(), nil)

	case "draw":
		if len(args) < 2 || strings.TrimSpace(args[1]) == "" {
			return errors.New("request id required")
		}
		return show(c, out, http.MethodGet, "/api/v1/raffle/draws/"+url.PathEscape(strings.TrimSpace(args[1])), nil)

	case "settings":
		switch len(args) {
		case 1:
			return show(c, out, http.MethodGet, "/api/v1/settings", nil)
		case 2:
			return show(c, out, http.MethodGet, "/api/v1/settings/"+url.PathEscape(args[1]), nil)
		default:
			enabled, err := parseSwitch(args[2])
			if err != nil {
				return err
			}
			return show(c, out, http.MethodPut, "/api/v1/settings/"+url.PathEscape(args[1]), map[string]bool{"enabled": enabled})
		}

	case "token":
		fs := flag.NewFlagSet("rafflectl token", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		secret := fs.String("secret", os.Getenv("RAFFLE_ORACLE_CALLBACK_SECRET"), "callback secret (env: RAFFLE_ORACLE_CALLBACK_SECRET)")
		subscription := fs.String("subscription", "", "subscription id")
		ttl := fs.Duration("ttl", time.Hour, "token lifetime")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		j := auth.JWT{Secret: []byte(strings.TrimSpace(*secret)), TokenTTL: *ttl}
		tok, exp, err := j.Sign(auth.Claims{Role: auth.RoleOracle, SubscriptionID: strings.TrimSpace(*subscription)})
		if err != nil {
			return err
		}
		return writeJSON(out, map[string]any{"token": tok, "expires_at": exp})

	case "help", "-h", "--help":
		usage(out)
		return nil
	default:
		usage(os.Stderr)
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func parseSwitch(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on", "true", "1", "enable", "enabled":
		return true, nil
	case "off", "false", "0", "disable", "disabled":
		return false, nil
	}
	return false, fmt.Errorf("invalid switch value %q (want on|off)", raw)
}

func show(c *client, out io.Writer, method, path string, body any) error {
	env, err := c.call(method, path, body)
	if err != nil {
		return err
	}
	v := map[string]json.RawMessage{"data": env.Data}
	if len(env.Meta) > 0 && string(env.Meta) != "null" {
		v["meta"] = env.Meta
	}
	return writeJSON(out, v)
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
