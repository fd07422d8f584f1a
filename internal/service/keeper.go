package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"raffle/internal/raffle"
)

type KeeperAction string

const (
	KeeperIdle       KeeperAction = "idle"
	KeeperDisabled   KeeperAction = "disabled"
	KeeperDrawn      KeeperAction = "draw_requested"
	KeeperCancelled  KeeperAction = "draw_cancelled"
	KeeperWaitOracle KeeperAction = "awaiting_oracle"
)

// Keeper is the upkeep automation: on every tick it starts a draw when one
// is due, and drops a stalled draw when stale cancellation is switched on.
type Keeper struct {
	Service *RaffleService
	Flags   *SystemSettingsService
	Logger  *zap.Logger
}

type KeeperResult struct {
	Action    KeeperAction `json:"action"`
	RequestID string       `json:"request_id,omitempty"`
}

func (k *Keeper) RunOnce(ctx context.Context) (KeeperResult, error) {
	if k == nil || k.Service == nil {
		return KeeperResult{Action: KeeperIdle}, nil
	}
	if !k.Flags.IsEnabled(ctx, FeatureKeeper, true) {
		return KeeperResult{Action: KeeperDisabled}, nil
	}

	r := k.Service.Raffle
	if r.State() == raffle.StateCalculating {
		if !r.DrawExpired() || !k.Flags.IsEnabled(ctx, FeatureStaleDrawCancel, true) {
			return KeeperResult{Action: KeeperWaitOracle}, nil
		}
		requestID, err := k.Service.CancelStale(ctx)
		if errors.Is(err, raffle.ErrDrawNotExpired) || errors.Is(err, raffle.ErrNoOutstandingRequest) {
			return KeeperResult{Action: KeeperIdle}, nil
		}
		if err != nil {
			return KeeperResult{}, err
		}
		if k.Logger != nil {
			k.Logger.Warn("stale draw cancelled", zap.String("request_id", requestID))
		}
		return KeeperResult{Action: KeeperCancelled, RequestID: requestID}, nil
	}

	if !r.CheckUpkeep().UpkeepNeeded {
		return KeeperResult{Action: KeeperIdle}, nil
	}
	requestID, err := k.Service.PerformUpkeep(ctx)
	if errors.Is(err, raffle.ErrUpkeepNotNeeded) {
		// Lost a race with a manual upkeep call.
		return KeeperResult{Action: KeeperIdle}, nil
	}
	if err != nil {
		return KeeperResult{}, err
	}
	if k.Logger != nil {
		k.Logger.Info("draw requested", zap.String("request_id", requestID), zap.Uint64("round", r.Round()))
	}
	return KeeperResult{Action: KeeperDrawn, RequestID: requestID}, nil
}
