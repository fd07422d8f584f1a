package oracle

import (
	"context"
	"errors"
	"strings"

	"github.com/holiman/uint256"
)

var ErrNonexistentRequest = errors.New("oracle: nonexistent request")

// Consumer receives the random words of a fulfilled request. Returning an
// error leaves the request pending so the same words can be redelivered.
type Consumer func(ctx context.Context, requestID string, words []*uint256.Int) error

// RequestParams are forwarded to the coordinator unchanged.
type RequestParams struct {
	KeyHash              string `json:"key_hash"`
	SubscriptionID       string `json:"subscription_id"`
	RequestConfirmations uint16 `json:"request_confirmations"`
	CallbackGasLimit     uint32 `json:"callback_gas_limit"`
	NumWords             uint32 `json:"num_words"`
}

func (p RequestParams) words() int {
	if p.NumWords == 0 {
		return 1
	}
	return int(p.NumWords)
}

func (p RequestParams) Validate() error {
	if strings.TrimSpace(p.KeyHash) == "" {
		return errors.New("oracle: key hash is required")
	}
	if p.CallbackGasLimit == 0 {
		return errors.New("oracle: callback gas limit must be positive")
	}
	return nil
}
