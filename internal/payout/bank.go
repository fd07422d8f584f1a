package payout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

var (
	ErrInsufficientFunds = errors.New("payout: insufficient funds")
	ErrInvalidAmount     = errors.New("payout: amount must be positive")
	ErrTransfersHalted   = errors.New("payout: transfers halted")
	ErrSelfTransfer      = errors.New("payout: source and destination are the same account")
)

// Bank is an in-memory account book. Entrance fees move from the
// participant into the escrow account, and the pot moves from escrow to
// the winner.
type Bank struct {
	Logger *zap.Logger

	mu       sync.Mutex
	escrow   common.Address
	accounts map[common.Address]*uint256.Int
	halted   bool
}

func NewBank(escrow common.Address, logger *zap.Logger) *Bank {
	return &Bank{
		Logger:   logger,
		escrow:   escrow,
		accounts: make(map[common.Address]*uint256.Int),
	}
}

func (b *Bank) Escrow() common.Address { return b.escrow }

// Fund credits an account from outside the book (faucet, genesis).
func (b *Bank) Fund(to common.Address, amount *uint256.Int) (*uint256.Int, error) {
	if amount == nil || amount.IsZero() {
		return nil, ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	next, overflow := new(uint256.Int).AddOverflow(b.balanceLocked(to), amount)
	if overflow {
		return nil, fmt.Errorf("fund %s: balance overflow", to.Hex())
	}
	b.accounts[to] = next
	return new(uint256.Int).Set(next), nil
}

// Deposit moves amount from a participant into escrow.
func (b *Bank) Deposit(ctx context.Context, from common.Address, amount *uint256.Int) error {
	return b.transfer(from, b.escrow, amount)
}

// Refund returns a deposit that the raffle did not accept.
func (b *Bank) Refund(ctx context.Context, to common.Address, amount *uint256.Int) error {
	return b.transfer(b.escrow, to, amount)
}

// Pay releases amount from escrow to the winner. It pays all or nothing.
func (b *Bank) Pay(ctx context.Context, to common.Address, amount *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	halted := b.halted
	b.mu.Unlock()
	if halted {
		return ErrTransfersHalted
	}
	if err := b.transfer(b.escrow, to, amount); err != nil {
		return err
	}
	if b.Logger != nil {
		b.Logger.Info("payout sent", zap.String("to", to.Hex()), zap.String("amount", amount.Dec()))
	}
	return nil
}

// Halt makes Pay fail until Resume is called. Operators use it to freeze
// payouts during an incident.
func (b *Bank) Halt() {
	b.mu.Lock()
	b.halted = true
	b.mu.Unlock()
}

func (b *Bank) Resume() {
	b.mu.Lock()
	b.halted = false
	b.mu.Unlock()
}

func (b *Bank) Halted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.halted
}

func (b *Bank) BalanceOf(addr common.Address) *uint256.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(uint256.Int).Set(b.balanceLocked(addr))
}

func (b *Bank) transfer(from, to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	if from == to {
		return ErrSelfTransfer
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	src := b.balanceLocked(from)
	if src.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, from.Hex(), src.Dec(), amount.Dec())
	}
	dst, overflow := new(uint256.Int).AddOverflow(b.balanceLocked(to), amount)
	if overflow {
		return fmt.Errorf("transfer to %s: balance overflow", to.Hex())
	}
	b.accounts[from] = new(uint256.Int).Sub(src, amount)
	b.accounts[to] = dst
	return nil
}

func (b *Bank) balanceLocked(addr common.Address) *uint256.Int {
	if v, ok := b.accounts[addr]; ok {
		return v
	}
	return new(uint256.Int)
}
