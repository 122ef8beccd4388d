// Package eth contains the Ethereum related pieces of the node: the
// signatures that authenticate the admin requests, and a clock that follows
// the timestamp of the chain head.
package eth

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.vocdoni.io/dvote/log"
)

// DefaultPollInterval is the interval between chain head reads of the
// BlockClock
const DefaultPollInterval = 12 * time.Second

const rpcTimeout = 10 * time.Second

// HeaderReader defines the interface that provides the headers of the
// Ethereum blockchain. *ethclient.Client implements it.
type HeaderReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// BlockClock is a clock that returns the timestamp of the latest known
// Ethereum block. The returned time never moves backwards, and on RPC
// errors the last known value is kept.
type BlockClock struct {
	client HeaderReader

	mu       sync.RWMutex
	now      uint64
	blockNum uint64
}

// Dial connects to the given Ethereum RPC endpoint and returns a BlockClock
// synchronized with its chain head
func Dial(ctx context.Context, ethURL string) (*BlockClock, error) {
	client, err := ethclient.DialContext(ctx, ethURL)
	if err != nil {
		return nil, err
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("can not get the chain id: %w", err)
	}
	log.Infow("connected to ethereum", "url", ethURL, "chainID", chainID.Uint64())
	return NewBlockClock(ctx, client)
}

// NewBlockClock returns a BlockClock that reads the blocks from the given
// HeaderReader. The first read must succeed.
func NewBlockClock(ctx context.Context, client HeaderReader) (*BlockClock, error) {
	bc := &BlockClock{client: client}
	if err := bc.Update(ctx); err != nil {
		return nil, err
	}
	return bc, nil
}

// Now returns the timestamp of the latest known block, in unix seconds
func (bc *BlockClock) Now() uint64 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.now
}

// BlockNum returns the number of the latest known block
func (bc *BlockClock) BlockNum() uint64 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.blockNum
}

// Update reads the current chain head. A head older than the latest known
// one is ignored.
func (bc *BlockClock) Update(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()
	header, err := bc.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return fmt.Errorf("can not read the chain head: %w", err)
	}
	if header == nil || header.Number == nil {
		return fmt.Errorf("can not read the chain head: empty header")
	}

	bc.mu.Lock()
	defer bc.mu.Unlock()
	if header.Time < bc.now {
		log.Debugw("ignoring older chain head", "blockNum", header.Number.Uint64(),
			"time", header.Time, "now", bc.now)
		return nil
	}
	bc.now = header.Time
	bc.blockNum = header.Number.Uint64()
	return nil
}

// Run updates the BlockClock every interval until the context is done
func (bc *BlockClock) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := bc.Update(ctx); err != nil {
				log.Warnw("block clock not updated", "err", err)
				continue
			}
			log.Debugf("new eth block: %d, time: %d", bc.BlockNum(), bc.Now())
		}
	}
}
