package rpcgrp

import (
	"encoding/binary"

	"github.com/blastnetwork/blast/foundation/blockchain/database"
	"github.com/blastnetwork/blast/foundation/blockchain/state"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// EthAPI implements the subset of the eth_ namespace the ledger supports.
// There is no historic state so block tags on account calls are ignored.
type EthAPI struct {
	log   *zap.SugaredLogger
	state *state.State
}

// ChainId returns the chain id.
func (api *EthAPI) ChainId() hexutil.Uint64 {
	return hexutil.Uint64(api.state.RetrieveGenesis().ChainID)
}

// BlockNumber returns the number of the latest block.
func (api *EthAPI) BlockNumber() hexutil.Uint64 {
	return hexutil.Uint64(api.state.RetrieveLatestBlock().Header.Number)
}

// GetBalance returns the balance of the account in base units.
func (api *EthAPI) GetBalance(address string, tag *string) (*hexutil.Big, error) {
	id, err := accountID(address)
	if err != nil {
		return nil, err
	}

	return (*hexutil.Big)(api.state.QueryBalance(id).ToBig()), nil
}

// GetTransactionCount returns the next nonce the account must use.
func (api *EthAPI) GetTransactionCount(address string, tag *string) (hexutil.Uint64, error) {
	id, err := accountID(address)
	if err != nil {
		return 0, err
	}

	return hexutil.Uint64(api.state.QueryNonce(id)), nil
}

// GetBlockByNumber returns the block at the number or tag. A missing
// block is a null result.
func (api *EthAPI) GetBlockByNumber(number rpc.BlockNumber, fullTx *bool) (map[string]any, error) {
	var n uint64
	switch {
	case number == rpc.EarliestBlockNumber:
		n = 0
	case number < 0:
		n = api.state.RetrieveLatestBlock().Header.Number
	default:
		n = uint64(number.Int64())
	}

	block, exists := api.state.QueryBlockByNumber(n)
	if !exists {
		return nil, nil
	}

	return marshalBlock(block, api.state.RetrieveGenesis().GasLimit, fullTx != nil && *fullTx), nil
}

// GetBlockByHash returns the block with the hash. A missing block is a
// null result.
func (api *EthAPI) GetBlockByHash(hash string, fullTx *bool) (map[string]any, error) {
	block, exists := api.state.QueryBlockByHash(hash)
	if !exists {
		return nil, nil
	}

	return marshalBlock(block, api.state.RetrieveGenesis().GasLimit, fullTx != nil && *fullTx), nil
}

// SendTxArgs represents the arguments to submit a transaction.
type SendTxArgs struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Value     *hexutil.Big    `json:"value"`
	Nonce     *hexutil.Uint64 `json:"nonce"`
	Data      hexutil.Bytes   `json:"data"`
	Signature hexutil.Bytes   `json:"signature"`
	PublicKey hexutil.Bytes   `json:"publicKey"`
}

// SendTransaction admits a transaction and returns its hash. A missing
// nonce uses the sender's recorded nonce.
func (api *EthAPI) SendTransaction(args SendTxArgs) (string, error) {
	from, err := accountID(args.From)
	if err != nil {
		return "", err
	}

	to, err := accountID(args.To)
	if err != nil {
		return "", err
	}

	value := new(uint256.Int)
	if args.Value != nil {
		var overflow bool
		if value, overflow = uint256.FromBig(args.Value.ToInt()); overflow {
			return "", invalidParams("value %s overflows 256 bits", args.Value)
		}
	}

	nonce := api.state.QueryNonce(from)
	if args.Nonce != nil {
		nonce = uint64(*args.Nonce)
	}

	signedTx := database.SignedTx{
		Tx: database.Tx{
			From:  from,
			To:    to,
			Value: value,
			Nonce: nonce,
			Data:  args.Data,
		},
		Signature: args.Signature,
		PublicKey: args.PublicKey,
	}

	tx, _, err := api.state.SubmitTransactionReceipt(signedTx)
	if err != nil {
		return "", toRPCError(err)
	}

	api.log.Infow("rpc", "method", "eth_sendTransaction", "from:nonce", signedTx, "to", to, "value", value.Dec())

	return tx.HashHex(), nil
}

// GetWork returns the current work package for the node's beneficiary:
// the seal header, the parent hash, the 32 byte target and the block
// number.
func (api *EthAPI) GetWork() ([4]string, error) {
	work, err := api.state.GetWork("")
	if err != nil {
		return [4]string{}, toRPCError(err)
	}

	return [4]string{work.Header, work.PrevHash, work.Target, hexutil.EncodeUint64(work.Number)}, nil
}

// SubmitWork submits a solution for a work package. The nonce is at most
// 8 big endian bytes.
func (api *EthAPI) SubmitWork(nonce hexutil.Bytes, digest string, header string) (bool, error) {
	n, err := decodeNonce(nonce)
	if err != nil {
		return false, err
	}

	if _, err := api.state.SubmitWork(n, digest, header); err != nil {
		return false, toRPCError(err)
	}

	return true, nil
}

// =============================================================================

// decodeNonce reads up to 8 big endian bytes.
func decodeNonce(b hexutil.Bytes) (uint64, error) {
	if len(b) > 8 {
		return 0, invalidParams("nonce %s longer than 8 bytes", b)
	}

	var buf [8]byte
	copy(buf[8-len(b):], b)

	return binary.BigEndian.Uint64(buf[:]), nil
}

// marshalBlock renders the block in the shape wallets expect from the
// eth_ namespace. Timestamps are seconds there, the ledger keeps
// milliseconds under timestampMs.
func marshalBlock(block database.Block, gasLimit uint64, fullTx bool) map[string]any {
	values := block.Trans.Values()

	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], block.Header.Nonce)

	var trans []any
	for _, tx := range values {
		if !fullTx {
			trans = append(trans, tx.HashHex())
			continue
		}

		trans = append(trans, map[string]any{
			"hash":        tx.HashHex(),
			"from":        tx.From,
			"to":          tx.To,
			"value":       (*hexutil.Big)(tx.Value.ToBig()),
			"fee":         (*hexutil.Big)(tx.Fee.ToBig()),
			"nonce":       hexutil.Uint64(tx.Nonce),
			"input":       hexutil.Bytes(tx.Data),
			"timestampMs": hexutil.Uint64(tx.TimeStamp),
			"isReward":    tx.IsReward,
			"blockHash":   block.Hash,
			"blockNumber": hexutil.Uint64(block.Header.Number),
		})
	}
	if trans == nil {
		trans = []any{}
	}

	return map[string]any{
		"number":       hexutil.Uint64(block.Header.Number),
		"hash":         block.Hash,
		"parentHash":   block.Header.PrevBlockHash,
		"timestamp":    hexutil.Uint64(block.Header.TimeStamp / 1000),
		"timestampMs":  hexutil.Uint64(block.Header.TimeStamp),
		"receiptsRoot": block.Header.ReceiptsRoot,
		"miner":        block.Header.BeneficiaryID,
		"difficulty":   hexutil.Uint64(block.Header.Difficulty),
		"nonce":        hexutil.Bytes(nonce[:]),
		"extraData":    hexutil.Bytes([]byte(block.Header.ExtraData)),
		"gasLimit":     hexutil.Uint64(gasLimit),
		"gasUsed":      hexutil.Uint64(0),
		"transactions": trans,
	}
}
