package raffle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/holiman/uint256"
)

// Oracle is the randomness provider. SubmitRequest must return an id that is
// unique and cannot be predicted before the request is made. The random value
// arrives later through Raffle.Fulfill.
type Oracle interface {
	SubmitRequest(ctx context.Context) (string, error)
}

// OutstandingRequest is the single live randomness request of a draw.
type OutstandingRequest struct {
	ID       string       `json:"id"`
	IssuedAt time.Time    `json:"issued_at"`
	Pinned   *uint256.Int `json:"pinned_value,omitempty"`
}

func (r OutstandingRequest) clone() *OutstandingRequest {
	out := r
	if r.Pinned != nil {
		out.Pinned = new(uint256.Int).Set(r.Pinned)
	}
	return &out
}

// RandomnessRequester binds oracle responses to the one request it issued.
type RandomnessRequester struct {
	oracle      Oracle
	outstanding *OutstandingRequest
}

func NewRandomnessRequester(oracle Oracle) *RandomnessRequester {
	return &RandomnessRequester{oracle: oracle}
}

func (r *RandomnessRequester) Request(ctx context.Context, now time.Time) (string, error) {
	if r.outstanding != nil {
		return "", ErrRequestAlreadyOutstanding
	}
	if r.oracle == nil {
		return "", errors.New("raffle: oracle not configured")
	}
	id, err := r.oracle.SubmitRequest(ctx)
	if err != nil {
		return "", fmt.Errorf("submit randomness request: %w", err)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("raffle: oracle returned empty request id")
	}
	r.outstanding = &OutstandingRequest{ID: id, IssuedAt: now}
	return id, nil
}

// Check reports whether requestID is the live request and returns a copy
// of it. The live request itself is not consumed.
func (r *RandomnessRequester) Check(requestID string) (*OutstandingRequest, error) {
	if r.outstanding == nil || r.outstanding.ID != requestID {
		return nil, ErrUnknownRequest
	}
	return r.outstanding.clone(), nil
}

// Pin binds value to the live request; later fulfillments must carry the
// same value.
func (r *RandomnessRequester) Pin(requestID string, value *uint256.Int) error {
	if r.outstanding == nil || r.outstanding.ID != requestID {
		return ErrUnknownRequest
	}
	r.outstanding.Pinned = new(uint256.Int).Set(value)
	return nil
}

// Accept consumes the live request and hands back the random value.
func (r *RandomnessRequester) Accept(requestID string, value *uint256.Int) (*uint256.Int, error) {
	if _, err := r.Check(requestID); err != nil {
		return nil, err
	}
	r.outstanding = nil
	return value, nil
}

func (r *RandomnessRequester) Cancel() (*OutstandingRequest, error) {
	if r.outstanding == nil {
		return nil, ErrNoOutstandingRequest
	}
	req := r.outstanding
	r.outstanding = nil
	return req, nil
}

func (r *RandomnessRequester) Outstanding() *OutstandingRequest {
	if r.outstanding == nil {
		return nil
	}
	return r.outstanding.clone()
}
