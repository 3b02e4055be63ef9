package rpcgrp_test

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/blastnetwork/blast/app/services/node/handlers/rpcgrp"
	"github.com/blastnetwork/blast/foundation/blockchain/database"
	"github.com/blastnetwork/blast/foundation/blockchain/genesis"
	"github.com/blastnetwork/blast/foundation/blockchain/pow"
	"github.com/blastnetwork/blast/foundation/blockchain/state"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	kennedyKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	minerKey   = "8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0"
	recipient  = "0xBLAST00000000000000000000000000000000AA"
)

type fixture struct {
	client *rpc.Client
	state  *state.State
	from   database.AccountID
	miner  database.AccountID
}

func newFixture(t *testing.T) fixture {
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

	// Each call sees a later time so pulled work never collides.
	now := gen.Date.Add(time.Hour)
	clock := func() time.Time {
		now = now.Add(time.Second)
		return now
	}

	st, err := state.New(state.Config{
		BeneficiaryID: miner,
		Genesis:       gen,
		Clock:         clock,
		EvHandler: func(v string, args ...any) {
			t.Logf(v, args...)
		},
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
	}

	srv, err := rpcgrp.NewServer(rpcgrp.Config{
		Log:   zap.NewNop().Sugar(),
		State: st,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the rpc server: %v", failed, err)
	}
	t.Cleanup(srv.Stop)

	client := rpc.DialInProc(srv)
	t.Cleanup(client.Close)

	return fixture{
		client: client,
		state:  st,
		from:   from,
		miner:  miner,
	}
}

// =============================================================================

func Test_Identity(t *testing.T) {
	f := newFixture(t)

	t.Log("Given the need to identify the network over rpc.")
	{
		var version string
		if err := f.client.Call(&version, "web3_clientVersion"); err != nil || version != rpcgrp.ClientVersion {
			t.Fatalf("\t%s\tShould get the client version: %q %v", failed, version, err)
		}
		t.Logf("\t%s\tShould get the client version.", success)

		var netVersion string
		if err := f.client.Call(&netVersion, "net_version"); err != nil || netVersion != "8888" {
			t.Fatalf("\t%s\tShould get the network id: %q %v", failed, netVersion, err)
		}
		t.Logf("\t%s\tShould get the network id.", success)

		var chainID hexutil.Uint64
		if err := f.client.Call(&chainID, "eth_chainId"); err != nil || chainID != genesis.ChainID {
			t.Fatalf("\t%s\tShould get the chain id: %d %v", failed, chainID, err)
		}
		t.Logf("\t%s\tShould get the chain id.", success)

		var digest hexutil.Bytes
		if err := f.client.Call(&digest, "web3_sha3", hexutil.Bytes("blast")); err != nil {
			t.Fatalf("\t%s\tShould hash the input: %v", failed, err)
		}
		if exp := crypto.Keccak256([]byte("blast")); hexutil.Encode(digest) != hexutil.Encode(exp) {
			t.Fatalf("\t%s\tShould hash the input with keccak-256.", failed)
		}
		t.Logf("\t%s\tShould hash the input with keccak-256.", success)
	}
}

func Test_SendAndMine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Log("Given the need to move value over rpc.")
	{
		args := map[string]any{
			"from":  f.from,
			"to":    recipient,
			"value": (*hexutil.Big)(uint256.NewInt(10_000).ToBig()),
		}

		var txHash string
		if err := f.client.CallContext(ctx, &txHash, "eth_sendTransaction", args); err != nil {
			t.Fatalf("\t%s\tShould be able to send the transaction: %v", failed, err)
		}
		if len(txHash) != 66 {
			t.Fatalf("\t%s\tShould get a 32 byte transaction hash: %s", failed, txHash)
		}
		t.Logf("\t%s\tShould be able to send the transaction.", success)

		var nonce hexutil.Uint64
		if err := f.client.CallContext(ctx, &nonce, "eth_getTransactionCount", f.from, "latest"); err != nil || nonce != 1 {
			t.Fatalf("\t%s\tShould advance the sender nonce on admission: %d %v", failed, nonce, err)
		}
		t.Logf("\t%s\tShould advance the sender nonce on admission.", success)

		args["nonce"] = hexutil.Uint64(0)
		if err := f.client.CallContext(ctx, &txHash, "eth_sendTransaction", args); err == nil {
			t.Fatalf("\t%s\tShould reject a replayed nonce.", failed)
		}
		t.Logf("\t%s\tShould reject a replayed nonce.", success)

		var mined rpcgrp.MinedBlock
		if err := f.client.CallContext(ctx, &mined, "blast_mineBlock"); err != nil {
			t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
		}
		if mined.BlockNumber != 1 || mined.Miner != f.miner || mined.Txs != 2 {
			t.Fatalf("\t%s\tShould mine block 1 for the node with 2 txs: %+v", failed, mined)
		}
		t.Logf("\t%s\tShould mine block 1 for the node with 2 txs.", success)

		var balance hexutil.Big
		if err := f.client.CallContext(ctx, &balance, "eth_getBalance", recipient, "latest"); err != nil {
			t.Fatalf("\t%s\tShould get the recipient balance: %v", failed, err)
		}
		if balance.ToInt().Uint64() != 10_000 {
			t.Fatalf("\t%s\tShould credit the recipient when mined: %s", failed, balance.String())
		}
		t.Logf("\t%s\tShould credit the recipient when mined.", success)

		var number hexutil.Uint64
		if err := f.client.CallContext(ctx, &number, "eth_blockNumber"); err != nil || number != 1 {
			t.Fatalf("\t%s\tShould report block 1 as latest: %d %v", failed, number, err)
		}
		t.Logf("\t%s\tShould report block 1 as latest.", success)

		var block map[string]any
		if err := f.client.CallContext(ctx, &block, "eth_getBlockByNumber", "latest", false); err != nil {
			t.Fatalf("\t%s\tShould get the latest block: %v", failed, err)
		}
		if block["hash"] != mined.Hash {
			t.Fatalf("\t%s\tShould get the mined block: %v", failed, block["hash"])
		}
		if trans, ok := block["transactions"].([]any); !ok || len(trans) != 2 || trans[0] != txHash {
			t.Fatalf("\t%s\tShould list the transaction hashes in order: %v", failed, block["transactions"])
		}
		t.Logf("\t%s\tShould get the mined block with its transaction hashes.", success)

		var byHash map[string]any
		if err := f.client.CallContext(ctx, &byHash, "eth_getBlockByHash", mined.Hash, true); err != nil || byHash["number"] != "0x1" {
			t.Fatalf("\t%s\tShould get the block by hash: %v %v", failed, byHash["number"], err)
		}
		t.Logf("\t%s\tShould get the block by hash.", success)

		var missing map[string]any
		if err := f.client.CallContext(ctx, &missing, "eth_getBlockByNumber", "0x64", false); err != nil || missing != nil {
			t.Fatalf("\t%s\tShould get null for a missing block: %v %v", failed, missing, err)
		}
		t.Logf("\t%s\tShould get null for a missing block.", success)

		var proof state.TxProof
		if err := f.client.CallContext(ctx, &proof, "blast_getTxProof", txHash); err != nil || !state.VerifyTxProof(proof) {
			t.Fatalf("\t%s\tShould get a verifiable proof of inclusion: %v", failed, err)
		}
		t.Logf("\t%s\tShould get a verifiable proof of inclusion.", success)

		var valid bool
		if err := f.client.CallContext(ctx, &valid, "blast_validateChain"); err != nil || !valid {
			t.Fatalf("\t%s\tShould hold a valid chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould hold a valid chain.", success)
	}
}

func Test_Work(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Log("Given the need to mine through rpc pulled work.")
	{
		var work [4]string
		if err := f.client.CallContext(ctx, &work, "eth_getWork"); err != nil {
			t.Fatalf("\t%s\tShould be able to get work: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to get work.", success)

		header, err := hexutil.Decode(work[0])
		if err != nil {
			t.Fatalf("\t%s\tShould get a hex header: %v", failed, err)
		}
		targetBytes, err := hexutil.Decode(work[2])
		if err != nil {
			t.Fatalf("\t%s\tShould get a hex target: %v", failed, err)
		}
		target := new(uint256.Int).SetBytes(targetBytes)

		nonce, digest, err := pow.Search(ctx, pow.Keccak{}, header, target, 0, 1)
		if err != nil {
			t.Fatalf("\t%s\tShould find a nonce: %v", failed, err)
		}

		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], nonce)

		var accepted bool
		if err := f.client.CallContext(ctx, &accepted, "eth_submitWork", hexutil.Bytes(buf[:]), digest.Hex(), work[0]); err != nil || !accepted {
			t.Fatalf("\t%s\tShould accept the solution: %v", failed, err)
		}
		t.Logf("\t%s\tShould accept the solution.", success)

		if latest := f.state.RetrieveLatestBlock(); latest.Header.Number != 1 || latest.Hash != digest.Hex() {
			t.Fatalf("\t%s\tShould append the solved block: blk[%d] %s", failed, latest.Header.Number, latest.Hash)
		}
		t.Logf("\t%s\tShould append the solved block.", success)

		if err := f.client.CallContext(ctx, &accepted, "eth_submitWork", hexutil.Bytes(buf[:]), digest.Hex(), work[0]); err == nil {
			t.Fatalf("\t%s\tShould reject a solution submitted twice.", failed)
		}
		t.Logf("\t%s\tShould reject a solution submitted twice.", success)

		var info rpcgrp.NetworkInfo
		if err := f.client.CallContext(ctx, &info, "blast_networkInfo"); err != nil || info.BlockNumber != 1 || info.Algorithm != pow.AlgorithmKeccak {
			t.Fatalf("\t%s\tShould report the network state: %+v %v", failed, info, err)
		}
		t.Logf("\t%s\tShould report the network state.", success)
	}
}

func Test_InvalidAddress(t *testing.T) {
	f := newFixture(t)

	t.Log("Given the need to reject malformed addresses.")
	{
		var balance hexutil.Big
		err := f.client.Call(&balance, "eth_getBalance", "bill", "latest")

		var rerr rpc.Error
		if !errors.As(err, &rerr) || rerr.ErrorCode() != -32602 {
			t.Fatalf("\t%s\tShould get an invalid params error: %v", failed, err)
		}
		t.Logf("\t%s\tShould get an invalid params error.", success)
	}
}
