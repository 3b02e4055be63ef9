package state_test

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blastnetwork/blast/foundation/blockchain/database"
	"github.com/blastnetwork/blast/foundation/blockchain/genesis"
	"github.com/blastnetwork/blast/foundation/blockchain/pow"
	"github.com/blastnetwork/blast/foundation/blockchain/signature"
	"github.com/blastnetwork/blast/foundation/blockchain/state"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	kennedyKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	minerKey   = "8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0"
)

const recipient = database.AccountID("0xBLAST00000000000000000000000000000000AA")

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type fixture struct {
	state  *state.State
	clock  *clock
	gen    genesis.Genesis
	from   database.AccountID
	miner  database.AccountID
	sender *ecdsa.PrivateKey
}

func newFixture(t *testing.T, configure func(gen *genesis.Genesis, cfg *state.Config)) fixture {
	sender, err := crypto.HexToECDSA(kennedyKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to load the sender key: %v", failed, err)
	}
	minerPK, err := crypto.HexToECDSA(minerKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to load the miner key: %v", failed, err)
	}

	from := database.PublicKeyToAccountID(sender.PublicKey)
	miner := database.PublicKeyToAccountID(minerPK.PublicKey)

	gen := genesis.Default()
	gen.PoW = genesis.PoW{Algorithm: pow.AlgorithmKeccak}
	gen.Difficulty = 1
	gen.Balances[string(from)] = 1000

	clk := clock{now: gen.Date.Add(time.Hour)}

	cfg := state.Config{
		BeneficiaryID: miner,
		Clock:         clk.Now,
		EvHandler: func(v string, args ...any) {
			t.Logf(v, args...)
		},
	}

	if configure != nil {
		configure(&gen, &cfg)
	}
	cfg.Genesis = gen

	st, err := state.New(cfg)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
	}

	return fixture{
		state:  st,
		clock:  &clk,
		gen:    gen,
		from:   from,
		miner:  miner,
		sender: sender,
	}
}

func (f fixture) signedTx(t *testing.T, to database.AccountID, value uint64, nonce uint64) database.SignedTx {
	tx, err := database.NewTx(f.from, to, uint256.NewInt(value), nonce, nil)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the transaction: %v", failed, err)
	}

	signedTx, err := tx.Sign(f.sender)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign the transaction: %v", failed, err)
	}

	return signedTx
}

// mine advances the clock by the block time and mines the next block.
func (f fixture) mine(t *testing.T) database.Block {
	f.clock.Advance(genesis.BlockTime)

	block, err := f.state.MineNewBlock(context.Background(), f.miner)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
	}

	return block
}

// countingEngine counts evaluations and corrupts digests once broken is set.
type countingEngine struct {
	pow.Keccak

	mu     sync.Mutex
	calls  int
	broken bool
}

func (e *countingEngine) Digest(header []byte, nonce uint64) pow.Digest {
	e.mu.Lock()
	e.calls++
	broken := e.broken
	e.mu.Unlock()

	digest := e.Keccak.Digest(header, nonce)
	if broken {
		digest[31] ^= 0xff
	}

	return digest
}

// reset returns the evaluations since the last reset.
func (e *countingEngine) reset() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	calls := e.calls
	e.calls = 0

	return calls
}

func (e *countingEngine) breakDigests() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.broken = true
}

// =============================================================================

func Test_Genesis(t *testing.T) {
	t.Log("Given the need to start a chain from genesis.")
	{
		f := newFixture(t, nil)

		exp := new(uint256.Int).Mul(uint256.NewInt(genesis.FoundationAllocation), f.gen.Coin())
		if got := f.state.QueryBalance(genesis.FoundationAccount); !got.Eq(exp) {
			t.Fatalf("\t%s\tShould seed the foundation account: got %s exp %s", failed, got.Dec(), exp.Dec())
		}
		t.Logf("\t%s\tShould seed the foundation account.", success)

		latest := f.state.RetrieveLatestBlock()
		if latest.Header.Number != 0 || latest.Header.PrevBlockHash != signature.ZeroHash || len(latest.Trans.Values()) != 0 {
			t.Fatalf("\t%s\tShould start with an empty genesis block.", failed)
		}
		t.Logf("\t%s\tShould start with an empty genesis block.", success)

		if !f.state.ValidateChain() {
			t.Fatalf("\t%s\tShould validate the chain after genesis.", failed)
		}
		t.Logf("\t%s\tShould validate the chain after genesis.", success)

		if got, ok := f.state.QueryBlockByHash(latest.Hash); !ok || got.Header.Number != 0 {
			t.Fatalf("\t%s\tShould find the genesis block by hash.", failed)
		}
		t.Logf("\t%s\tShould find the genesis block by hash.", success)

		if !f.state.QueryBalance(recipient).IsZero() || f.state.QueryNonce(recipient) != 0 {
			t.Fatalf("\t%s\tShould report zero for an unknown account.", failed)
		}
		if !f.state.QueryBalance("not-an-account").IsZero() {
			t.Fatalf("\t%s\tShould report zero for a malformed account.", failed)
		}
		if _, ok := f.state.QueryBlockByNumber(1); ok {
			t.Fatalf("\t%s\tShould not find a block past the tip.", failed)
		}
		if _, ok := f.state.QueryBlockByHash(signature.ZeroHash); ok {
			t.Fatalf("\t%s\tShould not find an unknown hash.", failed)
		}
		t.Logf("\t%s\tShould report not found without errors.", success)
	}
}

func Test_SubmitTransaction(t *testing.T) {
	t.Log("Given the need to admit transactions.")
	{
		f := newFixture(t, nil)
		foundation := database.AccountID(genesis.FoundationAccount)

		senderBefore := f.state.QueryBalance(f.from)
		feeBefore := f.state.QueryBalance(foundation)

		number, err := f.state.SubmitTransaction(f.signedTx(t, recipient, 100, 0))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to submit the transaction: %v", failed, err)
		}
		if number != 1 {
			t.Fatalf("\t%s\tShould expect the transaction in block 1, got %d.", failed, number)
		}
		t.Logf("\t%s\tShould be able to submit the transaction.", success)

		debit := new(uint256.Int).Sub(senderBefore, f.state.QueryBalance(f.from))
		if debit.Uint64() != 101 {
			t.Fatalf("\t%s\tShould debit the sender amount plus fee: got %s", failed, debit.Dec())
		}
		t.Logf("\t%s\tShould debit the sender amount plus fee.", success)

		credit := new(uint256.Int).Sub(f.state.QueryBalance(foundation), feeBefore)
		if credit.Uint64() != 1 {
			t.Fatalf("\t%s\tShould credit the fee recipient: got %s", failed, credit.Dec())
		}
		t.Logf("\t%s\tShould credit the fee recipient.", success)

		if f.state.QueryNonce(f.from) != 1 || f.state.RetrieveMempoolLength() != 1 {
			t.Fatalf("\t%s\tShould advance the nonce and queue the transaction.", failed)
		}
		t.Logf("\t%s\tShould advance the nonce and queue the transaction.", success)

		type table struct {
			name string
			tx   database.SignedTx
			exp  error
		}

		tt := []table{
			{name: "replay", tx: f.signedTx(t, recipient, 100, 0), exp: state.ErrInvalidNonce},
			{name: "gap", tx: f.signedTx(t, recipient, 100, 5), exp: state.ErrInvalidNonce},
			{name: "balance", tx: f.signedTx(t, recipient, 0, 1), exp: state.ErrInsufficientBalance},
		}

		// Spend more than the sender holds.
		tt[2].tx.Value = new(uint256.Int).Mul(uint256.NewInt(2000), f.gen.Coin())

		for testID, tst := range tt {
			fn := func(t *testing.T) {
				sender := f.state.QueryBalance(f.from)
				fee := f.state.QueryBalance(foundation)

				if _, err := f.state.SubmitTransaction(tst.tx); !errors.Is(err, tst.exp) {
					t.Fatalf("\t%s\tTest %d:\tShould fail with %v: got %v", failed, testID, tst.exp, err)
				}
				t.Logf("\t%s\tTest %d:\tShould fail with %v.", success, testID, tst.exp)

				if !sender.Eq(f.state.QueryBalance(f.from)) || !fee.Eq(f.state.QueryBalance(foundation)) || f.state.QueryNonce(f.from) != 1 {
					t.Fatalf("\t%s\tTest %d:\tShould leave every balance untouched.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould leave every balance untouched.", success, testID)
			}

			t.Run(tst.name, fn)
		}
	}
}

func Test_MineNewBlock(t *testing.T) {
	t.Log("Given the need to produce blocks.")
	{
		f := newFixture(t, nil)

		if _, err := f.state.SubmitTransaction(f.signedTx(t, recipient, 100, 0)); err != nil {
			t.Fatalf("\t%s\tShould be able to submit the transaction: %v", failed, err)
		}

		reward := f.state.RewardForHeight()
		minerBefore := f.state.QueryBalance(f.miner)
		length := f.state.RetrieveLatestBlock().Header.Number + 1

		block := f.mine(t)

		if block.Header.Number != length || f.state.RetrieveLatestBlock().Hash != block.Hash {
			t.Fatalf("\t%s\tShould grow the chain by one block.", failed)
		}
		t.Logf("\t%s\tShould grow the chain by one block.", success)

		if f.state.RetrieveMempoolLength() != 0 {
			t.Fatalf("\t%s\tShould empty the pending pool.", failed)
		}
		t.Logf("\t%s\tShould empty the pending pool.", success)

		gain := new(uint256.Int).Sub(f.state.QueryBalance(f.miner), minerBefore)
		if gain.Lt(reward) {
			t.Fatalf("\t%s\tShould pay the miner the reward: got %s exp %s", failed, gain.Dec(), reward.Dec())
		}
		t.Logf("\t%s\tShould pay the miner the reward.", success)

		if got := f.state.QueryBalance(recipient); got.Uint64() != 100 {
			t.Fatalf("\t%s\tShould credit the recipient once mined: got %s", failed, got.Dec())
		}
		t.Logf("\t%s\tShould credit the recipient once mined.", success)

		if f.state.QueryNonce(f.miner) != 1 {
			t.Fatalf("\t%s\tShould advance the miner nonce.", failed)
		}
		t.Logf("\t%s\tShould advance the miner nonce.", success)

		trans := block.Trans.Values()
		if len(trans) != 2 || trans[0].IsReward || !trans[1].IsReward || trans[1].To != f.miner {
			t.Fatalf("\t%s\tShould hold the pending transaction followed by the reward.", failed)
		}
		t.Logf("\t%s\tShould hold the pending transaction followed by the reward.", success)

		f.mine(t)
		if !f.state.ValidateChain() {
			t.Fatalf("\t%s\tShould validate the chain after every block.", failed)
		}
		t.Logf("\t%s\tShould validate the chain after every block.", success)

		txProof, ok := f.state.QueryTxProof(trans[0].HashHex())
		if !ok || txProof.BlockNumber != block.Header.Number || !state.VerifyTxProof(txProof) {
			t.Fatalf("\t%s\tShould prove the transaction is in the block.", failed)
		}
		t.Logf("\t%s\tShould prove the transaction is in the block.", success)

		if blocks := f.state.QueryBlocksByAccount(recipient); len(blocks) != 1 || blocks[0].Header.Number != block.Header.Number {
			t.Fatalf("\t%s\tShould find the blocks for an account.", failed)
		}
		t.Logf("\t%s\tShould find the blocks for an account.", success)
	}
}

func Test_Cancel(t *testing.T) {
	f := newFixture(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.state.MineNewBlock(ctx, f.miner); !errors.Is(err, context.Canceled) {
		t.Fatalf("\t%s\tShould stop mining when cancelled: %v", failed, err)
	}
	if f.state.RetrieveLatestBlock().Header.Number != 0 {
		t.Fatalf("\t%s\tShould leave the chain untouched when cancelled.", failed)
	}
	t.Logf("\t%s\tShould stop mining when cancelled.", success)
}

func Test_Retarget(t *testing.T) {
	type table struct {
		name  string
		delta time.Duration
		exp   uint
	}

	tt := []table{
		{name: "slow-at-floor", delta: 30 * time.Second, exp: 1},
		{name: "half", delta: 7500 * time.Millisecond, exp: 1},
		{name: "fast", delta: 5 * time.Second, exp: 2},
		{name: "faster", delta: 2 * time.Second, exp: 3},
		{name: "on-time", delta: 15 * time.Second, exp: 3},
		{name: "slow", delta: 23 * time.Second, exp: 2},
	}

	t.Log("Given the need to retarget the difficulty.")
	{
		f := newFixture(t, nil)

		// The first block is far from genesis and holds the floor.
		f.mine(t)

		for testID, tst := range tt {
			fn := func(t *testing.T) {
				f.clock.Advance(tst.delta)

				if _, err := f.state.MineNewBlock(context.Background(), f.miner); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to mine a block: %v", failed, testID, err)
				}

				if got := f.state.RetrieveDifficulty(); got != tst.exp {
					t.Fatalf("\t%s\tTest %d:\tShould move the difficulty to %d, got %d.", failed, testID, tst.exp, got)
				}
				t.Logf("\t%s\tTest %d:\tShould move the difficulty to %d.", success, testID, tst.exp)
			}

			t.Run(tst.name, fn)
		}
	}
}

func Test_RewardForHeight(t *testing.T) {
	f := newFixture(t, func(gen *genesis.Genesis, cfg *state.Config) {
		gen.HalvingInterval = 2
	})

	first := f.state.RewardForHeight()
	if !first.Eq(new(uint256.Int).Mul(uint256.NewInt(genesis.InitialReward), f.gen.Coin())) {
		t.Fatalf("\t%s\tShould start with the initial reward: got %s", failed, first.Dec())
	}

	f.mine(t)
	half := new(uint256.Int).Rsh(first, 1)
	if got := f.state.RewardForHeight(); !got.Eq(half) {
		t.Fatalf("\t%s\tShould halve the reward at the interval: got %s exp %s", failed, got.Dec(), half.Dec())
	}
	t.Logf("\t%s\tShould halve the reward at the interval.", success)
}

func Test_Work(t *testing.T) {
	t.Log("Given the need to mine through pulled work.")
	{
		f := newFixture(t, nil)
		f.clock.Advance(genesis.BlockTime)

		work, err := f.state.GetWork("")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to get work: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to get work.", success)

		header, err := hexutil.Decode(work.Header)
		if err != nil {
			t.Fatalf("\t%s\tShould get a hex header: %v", failed, err)
		}
		targetBytes, err := hexutil.Decode(work.Target)
		if err != nil {
			t.Fatalf("\t%s\tShould get a hex target: %v", failed, err)
		}
		target := new(uint256.Int).SetBytes(targetBytes)

		// Find a nonce that does not solve the work.
		var bad uint64
		for pow.Meets(pow.Keccak{}.Digest(header, bad), target) {
			bad++
		}
		if _, err := f.state.SubmitWork(bad, "", work.Header); !errors.Is(err, state.ErrInvalidProofOfWork) {
			t.Fatalf("\t%s\tShould reject an invalid solution: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject an invalid solution.", success)

		nonce, digest, err := pow.Search(context.Background(), pow.Keccak{}, header, target, 0, 1)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to solve the work: %v", failed, err)
		}

		if _, err := f.state.SubmitWork(nonce, signature.ZeroHash, work.Header); !errors.Is(err, state.ErrInvalidProofOfWork) {
			t.Fatalf("\t%s\tShould reject a mismatched digest: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a mismatched digest.", success)

		if _, err := f.state.SubmitWork(nonce, digest.Hex(), "0x00"); !errors.Is(err, state.ErrUnknownWork) {
			t.Fatalf("\t%s\tShould reject unknown work: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject unknown work.", success)

		f.clock.Advance(time.Millisecond)
		stale, err := f.state.GetWork(f.miner)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to get more work: %v", failed, err)
		}

		block, err := f.state.SubmitWork(nonce, digest.Hex(), work.Header)
		if err != nil {
			t.Fatalf("\t%s\tShould accept the solution: %v", failed, err)
		}
		if block.Hash != digest.Hex() || f.state.RetrieveLatestBlock().Header.Number != work.Number {
			t.Fatalf("\t%s\tShould append the solved block.", failed)
		}
		t.Logf("\t%s\tShould accept the solution.", success)

		if _, err := f.state.SubmitWork(nonce, digest.Hex(), work.Header); !errors.Is(err, state.ErrUnknownWork) {
			t.Fatalf("\t%s\tShould not accept the same work twice: %v", failed, err)
		}
		t.Logf("\t%s\tShould not accept the same work twice.", success)

		if _, err := f.state.SubmitWork(0, "", stale.Header); !errors.Is(err, state.ErrStaleWork) {
			t.Fatalf("\t%s\tShould reject work for an old tip: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject work for an old tip.", success)

		if !f.state.ValidateChain() {
			t.Fatalf("\t%s\tShould validate the chain.", failed)
		}
		t.Logf("\t%s\tShould validate the chain.", success)
	}
}

func Test_VerifySignatures(t *testing.T) {
	sender, err := crypto.HexToECDSA(kennedyKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to load the sender key: %v", failed, err)
	}
	hexFrom := database.AccountID(crypto.PubkeyToAddress(sender.PublicKey).Hex())

	f := newFixture(t, func(gen *genesis.Genesis, cfg *state.Config) {
		gen.Balances[string(hexFrom)] = 1000
		cfg.VerifySignatures = true
	})

	unsigned := f.signedTx(t, recipient, 100, 0)
	unsigned.Signature = nil
	if _, err := f.state.SubmitTransaction(unsigned); !errors.Is(err, state.ErrInvalidSignature) {
		t.Fatalf("\t%s\tShould reject an unsigned transaction: %v", failed, err)
	}
	t.Logf("\t%s\tShould reject an unsigned transaction.", success)

	forged := f.signedTx(t, recipient, 100, 0)
	forged.Value = uint256.NewInt(99)
	if _, err := f.state.SubmitTransaction(forged); !errors.Is(err, state.ErrInvalidSignature) {
		t.Fatalf("\t%s\tShould reject a modified transaction: %v", failed, err)
	}
	t.Logf("\t%s\tShould reject a modified transaction.", success)

	if _, err := f.state.SubmitTransaction(f.signedTx(t, recipient, 100, 0)); err != nil {
		t.Fatalf("\t%s\tShould accept a signed transaction: %v", failed, err)
	}
	t.Logf("\t%s\tShould accept a signed transaction.", success)

	hexTx, err := database.NewTx(hexFrom, recipient, uint256.NewInt(100), 0, nil)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the transaction: %v", failed, err)
	}

	tests := []struct {
		name      string
		publicKey bool
	}{
		{name: "recovered", publicKey: false},
		{name: "publickey", publicKey: true},
	}

	for nonce, tt := range tests {
		fn := func(t *testing.T) {
			hexTx.Nonce = uint64(nonce)
			signedTx, err := hexTx.Sign(f.sender)
			if err != nil {
				t.Fatalf("\t%s\tShould be able to sign the transaction: %v", failed, err)
			}
			if !tt.publicKey {
				signedTx.PublicKey = nil
			}

			if _, err := f.state.SubmitTransaction(signedTx); err != nil {
				t.Fatalf("\t%s\tShould accept a hex sender signed by its own key: %v", failed, err)
			}
			t.Logf("\t%s\tShould accept a hex sender signed by its own key.", success)
		}

		t.Run(tt.name, fn)
	}

	other, err := crypto.HexToECDSA(minerKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to load the miner key: %v", failed, err)
	}
	hexTx.Nonce = uint64(len(tests))
	stolen, err := hexTx.Sign(other)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign the transaction: %v", failed, err)
	}
	if _, err := f.state.SubmitTransaction(stolen); !errors.Is(err, state.ErrInvalidSignature) {
		t.Fatalf("\t%s\tShould reject a hex sender signed by another key: %v", failed, err)
	}
	t.Logf("\t%s\tShould reject a hex sender signed by another key.", success)
}

func Test_ValidateNewBlocks(t *testing.T) {
	engine := countingEngine{}
	f := newFixture(t, func(gen *genesis.Genesis, cfg *state.Config) {
		cfg.Engine = &engine
		cfg.VerifyCacheSize = 1
	})

	t.Log("Given the need to validate a chain without re-hashing known blocks.")
	{
		const blocks = 4
		for i := 0; i < blocks; i++ {
			f.mine(t)
		}

		engine.reset()
		if !f.state.ValidateChain() {
			t.Fatalf("\t%s\tShould validate the chain.", failed)
		}
		if calls := engine.reset(); calls < blocks {
			t.Fatalf("\t%s\tShould recompute every block on a full walk, got %d evaluations.", failed, calls)
		}
		t.Logf("\t%s\tShould recompute every block on a full walk.", success)

		if !f.state.ValidateNewBlocks() {
			t.Fatalf("\t%s\tShould validate the new blocks.", failed)
		}
		if calls := engine.reset(); calls != 0 {
			t.Fatalf("\t%s\tShould not recompute validated blocks, got %d evaluations.", failed, calls)
		}
		t.Logf("\t%s\tShould not recompute validated blocks.", success)

		f.mine(t)
		engine.reset()
		if !f.state.ValidateNewBlocks() {
			t.Fatalf("\t%s\tShould validate the new blocks.", failed)
		}
		if calls := engine.reset(); calls > 1 {
			t.Fatalf("\t%s\tShould only recompute the new block, got %d evaluations.", failed, calls)
		}
		t.Logf("\t%s\tShould only recompute the new block.", success)

		engine.breakDigests()
		if f.state.ValidateChain() {
			t.Fatalf("\t%s\tShould fail a chain whose proofs of work no longer check.", failed)
		}
		t.Logf("\t%s\tShould fail a chain whose proofs of work no longer check.", success)
	}
}
