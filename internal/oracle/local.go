package oracle

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// PendingRequest is a request the local coordinator has not settled yet.
type PendingRequest struct {
	ID          string    `json:"id"`
	RequestedAt time.Time `json:"requested_at"`
	// Delivered is true once words were generated and handed to the
	// consumer at least once.
	Delivered bool `json:"delivered"`
	Attempts  int  `json:"attempts"`

	words []*uint256.Int
}

// LocalCoordinator is an in-process stand-in for a VRF coordinator. Words
// are derived from a fresh crypto/rand seed, expanded with keccak256.
type LocalCoordinator struct {
	Logger *zap.Logger

	params   RequestParams
	consumer Consumer
	random   io.Reader

	autoFulfill bool
	delay       time.Duration
	isAutoOn    func(ctx context.Context) bool

	mu      sync.Mutex
	pending map[string]*PendingRequest
	wg      sync.WaitGroup
}

type LocalOptions struct {
	AutoFulfill  bool
	FulfillDelay time.Duration
	// AutoEnabled is consulted before each auto fulfillment; nil means on.
	AutoEnabled func(ctx context.Context) bool
}

func NewLocalCoordinator(params RequestParams, opts LocalOptions, logger *zap.Logger) *LocalCoordinator {
	return &LocalCoordinator{
		Logger:      logger,
		params:      params,
		random:      rand.Reader,
		autoFulfill: opts.AutoFulfill,
		delay:       opts.FulfillDelay,
		isAutoOn:    opts.AutoEnabled,
		pending:     make(map[string]*PendingRequest),
	}
}

// SetConsumer must be called before the first request is fulfilled.
func (c *LocalCoordinator) SetConsumer(consumer Consumer) {
	c.mu.Lock()
	c.consumer = consumer
	c.mu.Unlock()
}

func (c *LocalCoordinator) SubmitRequest(ctx context.Context) (string, error) {
	id := uuid.NewString()
	c.mu.Lock()
	c.pending[id] = &PendingRequest{ID: id, RequestedAt: time.Now().UTC()}
	c.mu.Unlock()

	if c.Logger != nil {
		c.Logger.Info("local randomness requested",
			zap.String("request_id", id),
			zap.String("key_hash", c.params.KeyHash),
			zap.Uint32("num_words", uint32(c.params.words())),
		)
	}
	if c.autoFulfill {
		c.wg.Add(1)
		go c.autoRun(id)
	}
	return id, nil
}

func (c *LocalCoordinator) autoRun(id string) {
	defer c.wg.Done()
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	ctx := context.Background()
	if c.isAutoOn != nil && !c.isAutoOn(ctx) {
		return
	}
	if err := c.Fulfill(ctx, id); err != nil && c.Logger != nil {
		c.Logger.Warn("local auto fulfill failed", zap.String("request_id", id), zap.Error(err))
	}
}

// Fulfill generates words for a pending request (or reuses the ones from an
// earlier failed delivery) and hands them to the consumer.
func (c *LocalCoordinator) Fulfill(ctx context.Context, requestID string) error {
	c.mu.Lock()
	req, ok := c.pending[requestID]
	consumer := c.consumer
	if !ok {
		c.mu.Unlock()
		return ErrNonexistentRequest
	}
	if req.words == nil {
		words, err := c.generate()
		if err != nil {
			c.mu.Unlock()
			return err
		}
		req.words = words
	}
	words := cloneWords(req.words)
	req.Delivered = true
	req.Attempts++
	c.mu.Unlock()

	return c.deliver(ctx, consumer, requestID, words)
}

// FulfillWithWords delivers caller-chosen words, for deterministic runs.
func (c *LocalCoordinator) FulfillWithWords(ctx context.Context, requestID string, words []*uint256.Int) error {
	if len(words) == 0 {
		return fmt.Errorf("oracle: no words supplied")
	}
	for i, w := range words {
		if w == nil {
			return fmt.Errorf("oracle: word %d is nil", i)
		}
	}
	c.mu.Lock()
	req, ok := c.pending[requestID]
	consumer := c.consumer
	if !ok {
		c.mu.Unlock()
		return ErrNonexistentRequest
	}
	req.words = cloneWords(words)
	req.Delivered = true
	req.Attempts++
	c.mu.Unlock()

	return c.deliver(ctx, consumer, requestID, cloneWords(words))
}

func (c *LocalCoordinator) deliver(ctx context.Context, consumer Consumer, requestID string, words []*uint256.Int) error {
	if consumer == nil {
		return fmt.Errorf("oracle: no consumer registered")
	}
	if err := consumer(ctx, requestID, words); err != nil {
		return fmt.Errorf("deliver %s: %w", requestID, err)
	}
	c.Forget(requestID)
	return nil
}

// Forget drops a pending request without fulfilling it.
func (c *LocalCoordinator) Forget(requestID string) {
	c.mu.Lock()
	delete(c.pending, requestID)
	c.mu.Unlock()
}

func (c *LocalCoordinator) Pending() []PendingRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]PendingRequest, 0, len(c.pending))
	for _, req := range c.pending {
		item := *req
		item.words = nil
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out
}

// Wait blocks until in-flight auto fulfillments return.
func (c *LocalCoordinator) Wait() {
	c.wg.Wait()
}

func (c *LocalCoordinator) generate() ([]*uint256.Int, error) {
	seed := make([]byte, 32)
	if _, err := io.ReadFull(c.random, seed); err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return expandWords(seed, c.params.words()), nil
}

func expandWords(seed []byte, n int) []*uint256.Int {
	words := make([]*uint256.Int, n)
	var idx [8]byte
	for i := range words {
		binary.BigEndian.PutUint64(idx[:], uint64(i))
		words[i] = new(uint256.Int).SetBytes(crypto.Keccak256(seed, idx[:]))
	}
	return words
}

func cloneWords(words []*uint256.Int) []*uint256.Int {
	out := make([]*uint256.Int, len(words))
	for i, w := range words {
		out[i] = new(uint256.Int).Set(w)
	}
	return out
}
