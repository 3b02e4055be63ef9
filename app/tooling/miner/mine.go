package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/blastnetwork/blast/foundation/blockchain/pow"
	"github.com/blastnetwork/blast/foundation/blockchain/state"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// errStale is returned when the chain moved past the work being solved.
var errStale = errors.New("stale work")

type minerConfig struct {
	Account      string
	Threads      int
	PollInterval time.Duration
	CallTimeout  time.Duration
}

// miner pulls work, solves it and submits the solution.
type miner struct {
	log    *zap.SugaredLogger
	client *rpc.Client
	engine pow.Engine
	cfg    minerConfig
}

// newMiner asks the node which proof of work function it runs.
func newMiner(ctx context.Context, log *zap.SugaredLogger, client *rpc.Client, cfg minerConfig) (*miner, error) {
	var info struct {
		ChainID   hexutil.Uint64 `json:"chainId"`
		Algorithm string         `json:"algorithm"`
		PoW       struct {
			MemorySize int `json:"memory_size"`
			Rounds     int `json:"rounds"`
		} `json:"pow"`
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
	defer cancel()

	if err := client.CallContext(callCtx, &info, "blast_networkInfo"); err != nil {
		return nil, fmt.Errorf("network info: %w", err)
	}

	engine, err := pow.New(info.Algorithm, info.PoW.MemorySize, info.PoW.Rounds)
	if err != nil {
		return nil, err
	}

	log.Infow("startup", "status", "connected", "chain", uint64(info.ChainID), "algorithm", engine.Name(), "threads", cfg.Threads)

	m := miner{
		log:    log,
		client: client,
		engine: engine,
		cfg:    cfg,
	}

	return &m, nil
}

// mineOne solves one work package and submits it.
func (m *miner) mineOne(ctx context.Context) error {
	work, err := m.getWork(ctx)
	if err != nil {
		return err
	}

	header, err := hexutil.Decode(work.Header)
	if err != nil {
		return fmt.Errorf("work header: %w", err)
	}

	targetBytes, err := hexutil.Decode(work.Target)
	if err != nil {
		return fmt.Errorf("work target: %w", err)
	}
	target := new(uint256.Int).SetBytes(targetBytes)

	m.log.Infow("mining", "status", "work received", "blk", work.Number, "difficulty", work.Difficulty)

	stale := func(ctx context.Context) (bool, error) {
		var number hexutil.Uint64
		if err := m.call(ctx, &number, "eth_blockNumber"); err != nil {
			return false, err
		}
		return uint64(number) >= work.Number, nil
	}

	start := time.Now()

	nonce, digest, err := solve(ctx, m.engine, header, target, m.cfg.Threads, m.cfg.PollInterval, stale)
	if err != nil {
		return err
	}

	m.log.Infow("mining", "status", "solved", "blk", work.Number, "nonce", nonce, "digest", digest.Hex(), "took", time.Since(start))

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], nonce)

	var accepted bool
	if err := m.call(ctx, &accepted, "eth_submitWork", hexutil.Bytes(buf[:]), digest.Hex(), work.Header); err != nil {
		return err
	}
	if !accepted {
		return fmt.Errorf("blk[%d] solution not accepted", work.Number)
	}

	m.log.Infow("mining", "status", "accepted", "blk", work.Number, "hash", digest.Hex())

	return nil
}

func (m *miner) getWork(ctx context.Context) (state.Work, error) {
	var work state.Work

	var account *string
	if m.cfg.Account != "" {
		account = &m.cfg.Account
	}

	if err := m.call(ctx, &work, "blast_getWork", account); err != nil {
		return state.Work{}, fmt.Errorf("get work: %w", err)
	}

	return work, nil
}

func (m *miner) call(ctx context.Context, result any, method string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	defer cancel()

	return m.client.CallContext(ctx, result, method, args...)
}

// =============================================================================

// solve splits the nonce space between the threads: thread i tries
// i, i+threads, i+2*threads and so on. The stale check runs every poll
// interval and abandons the search with errStale once it reports true.
func solve(ctx context.Context, engine pow.Engine, header []byte, target *uint256.Int, threads int, poll time.Duration, stale func(context.Context) (bool, error)) (uint64, pow.Digest, error) {
	if threads <= 0 {
		threads = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type solution struct {
		nonce  uint64
		digest pow.Digest
	}
	found := make(chan solution, threads)

	g, gctx := errgroup.WithContext(ctx)

	for i := range threads {
		g.Go(func() error {
			nonce, digest, err := pow.Search(gctx, engine, header, target, uint64(i), uint64(threads))
			if err != nil {
				return nil
			}

			found <- solution{nonce: nonce, digest: digest}
			cancel()
			return nil
		})
	}

	if stale != nil && poll > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(poll)
			defer ticker.Stop()

			for {
				select {
				case <-gctx.Done():
					return nil

				case <-ticker.C:
					moved, err := stale(gctx)
					if err != nil {
						continue
					}
					if moved {
						return errStale
					}
				}
			}
		})
	}

	err := g.Wait()

	select {
	case s := <-found:
		return s.nonce, s.digest, nil
	default:
	}

	if err != nil {
		return 0, pow.Digest{}, err
	}

	return 0, pow.Digest{}, ctx.Err()
}
