package notify

import (
	"context"

	"raffle/internal/paas"
	"raffle/internal/raffle"
)

// PaaSPublisher records observations in the easyweb3 PaaS log.
type PaaSPublisher struct {
	Client *paas.Client
}

func (p PaaSPublisher) Publish(ctx context.Context, obs raffle.Observation) error {
	if p.Client == nil {
		return nil
	}
	level := "info"
	if obs.Kind == raffle.ObservationPayoutFailed {
		level = "error"
	}
	details := map[string]any{
		"round": obs.Round,
		"at":    obs.At,
	}
	if obs.Participant != nil {
		details["participant"] = obs.Participant.Hex()
	}
	if obs.RequestID != "" {
		details["request_id"] = obs.RequestID
	}
	if obs.Winner != nil {
		details["winner"] = obs.Winner.Hex()
	}
	if obs.Amount != nil {
		details["amount"] = obs.Amount.Dec()
	}
	if obs.Error != "" {
		details["error"] = obs.Error
	}
	return p.Client.CreateLog(ctx, paas.CreateLogRequest{
		Action:  "raffle_" + string(obs.Kind),
		Level:   level,
		Details: details,
	})
}
