package raffle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

type seqOracle struct {
	next int
	err  error
}

func (o *seqOracle) SubmitRequest(ctx context.Context) (string, error) {
	if o.err != nil {
		return "", o.err
	}
	o.next++
	return fmt.Sprintf("req-%d", o.next), nil
}

type payment struct {
	to     common.Address
	amount *uint256.Int
}

type recordingPayer struct {
	fail     bool
	payments []payment
}

func (p *recordingPayer) Pay(ctx context.Context, to common.Address, amount *uint256.Int) error {
	if p.fail {
		return errors.New("transfer rejected")
	}
	p.payments = append(p.payments, payment{to: to, amount: new(uint256.Int).Set(amount)})
	return nil
}

func addr(n byte) common.Address {
	var a common.Address
	a[19] = n
	return a
}

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }
