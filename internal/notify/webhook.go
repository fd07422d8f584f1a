package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"raffle/internal/raffle"
)

type WebhookPayload struct {
	Project     string             `json:"project"`
	Event       string             `json:"event"`
	Message     string             `json:"message"`
	Observation raffle.Observation `json:"observation"`
}

// WebhookPublisher POSTs draw outcomes to a configured URL. Entries are
// not forwarded.
type WebhookPublisher struct {
	HTTP    *http.Client
	URL     string
	Project string
}

func (p WebhookPublisher) Publish(ctx context.Context, obs raffle.Observation) error {
	if obs.Kind == raffle.ObservationEntered {
		return nil
	}
	b, err := json.Marshal(WebhookPayload{
		Project:     p.Project,
		Event:       "raffle." + string(obs.Kind),
		Message:     describe(obs),
		Observation: obs,
	})
	if err != nil {
		return err
	}
	client := p.HTTP
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpError{StatusCode: resp.StatusCode}
	}
	return nil
}

type httpError struct {
	StatusCode int
}

func (e *httpError) Error() string {
	return "webhook http status " + http.StatusText(e.StatusCode)
}

func describe(obs raffle.Observation) string {
	switch obs.Kind {
	case raffle.ObservationWinnerPicked:
		return fmt.Sprintf("round %d won by %s (%s)", obs.Round, hexOrEmpty(obs), amountOrZero(obs))
	case raffle.ObservationDrawRequested:
		return fmt.Sprintf("round %d draw requested (%s)", obs.Round, obs.RequestID)
	case raffle.ObservationDrawCancelled:
		return fmt.Sprintf("round %d draw %s cancelled", obs.Round, obs.RequestID)
	case raffle.ObservationPayoutFailed:
		return fmt.Sprintf("round %d payout to %s failed: %s", obs.Round, hexOrEmpty(obs), obs.Error)
	default:
		return fmt.Sprintf("round %d %s", obs.Round, obs.Kind)
	}
}

func hexOrEmpty(obs raffle.Observation) string {
	if obs.Winner == nil {
		return ""
	}
	return obs.Winner.Hex()
}

func amountOrZero(obs raffle.Observation) string {
	if obs.Amount == nil {
		return "0"
	}
	return obs.Amount.Dec()
}
