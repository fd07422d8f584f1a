package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

func main() {
	var (
		apiBase = flag.String("api-base", "", "raffle service base URL (env: RAFFLE_API_BASE)")
		token   = flag.String("token", "", "Bearer token (env: RAFFLE_TOKEN)")
	)
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage(os.Stderr)
		os.Exit(2)
	}

	c := &client{BaseURL: "http://localhost:8080"}
	if v := strings.TrimSpace(os.Getenv("RAFFLE_API_BASE")); v != "" {
		c.BaseURL = v
	}
	if strings.TrimSpace(*apiBase) != "" {
		c.BaseURL = strings.TrimSpace(*apiBase)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	// Token resolution order: flag, then env.
	if strings.TrimSpace(*token) != "" {
		c.Token = strings.TrimSpace(*token)
	} else {
		c.Token = strings.TrimSpace(os.Getenv("RAFFLE_TOKEN"))
	}

	if err := dispatch(c, os.Stdout, args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
