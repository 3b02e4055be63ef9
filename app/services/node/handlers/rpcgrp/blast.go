package rpcgrp

import (
	"context"

	"github.com/blastnetwork/blast/foundation/blockchain/database"
	"github.com/blastnetwork/blast/foundation/blockchain/genesis"
	"github.com/blastnetwork/blast/foundation/blockchain/state"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

// BlastAPI implements the blast_ namespace.
type BlastAPI struct {
	log   *zap.SugaredLogger
	state *state.State
}

// NetworkInfo describes the chain and the node.
type NetworkInfo struct {
	ChainID           hexutil.Uint64     `json:"chainId"`
	NetworkID         hexutil.Uint64     `json:"networkId"`
	BlockNumber       hexutil.Uint64     `json:"blockNumber"`
	Difficulty        hexutil.Uint64     `json:"difficulty"`
	Algorithm         string             `json:"algorithm"`
	PoW               genesis.PoW        `json:"pow"`
	BlockTime         hexutil.Uint64     `json:"blockTime"`
	Reward            *hexutil.Big       `json:"reward"`
	FeeRateBPS        hexutil.Uint64     `json:"feeRateBps"`
	FeeRecipient      database.AccountID `json:"feeRecipient"`
	Pending           hexutil.Uint64     `json:"pending"`
	TotalTransactions hexutil.Uint64     `json:"totalTransactions"`
}

// NetworkInfo returns the chain parameters and the node's current view.
func (api *BlastAPI) NetworkInfo() NetworkInfo {
	gen := api.state.RetrieveGenesis()
	latest := api.state.RetrieveLatestBlock()

	var total uint64
	for _, block := range api.state.QueryBlocksByNumber(0, state.QueryLatest) {
		total += uint64(len(block.Trans.Values()))
	}

	return NetworkInfo{
		ChainID:           hexutil.Uint64(gen.ChainID),
		NetworkID:         hexutil.Uint64(gen.NetworkID),
		BlockNumber:       hexutil.Uint64(latest.Header.Number),
		Difficulty:        hexutil.Uint64(api.state.RetrieveDifficulty()),
		Algorithm:         api.state.RetrieveAlgorithm(),
		PoW:               gen.PoW,
		BlockTime:         hexutil.Uint64(gen.BlockTime),
		Reward:            (*hexutil.Big)(api.state.RewardForHeight().ToBig()),
		FeeRateBPS:        hexutil.Uint64(gen.FeeRateBPS),
		FeeRecipient:      api.state.RetrieveFeeRecipient(),
		Pending:           hexutil.Uint64(api.state.RetrieveMempoolLength()),
		TotalTransactions: hexutil.Uint64(total),
	}
}

// MinedBlock is the result of blast_mineBlock.
type MinedBlock struct {
	BlockNumber hexutil.Uint64     `json:"blockNumber"`
	Hash        string             `json:"hash"`
	Miner       database.AccountID `json:"miner"`
	Txs         int                `json:"txs"`
}

// MineBlock mines the pending transactions now. An empty miner uses the
// node's beneficiary.
func (api *BlastAPI) MineBlock(ctx context.Context, miner *string) (MinedBlock, error) {
	var beneficiaryID database.AccountID
	if miner != nil && *miner != "" {
		id, err := accountID(*miner)
		if err != nil {
			return MinedBlock{}, err
		}
		beneficiaryID = id
	}

	block, err := api.state.MineNewBlock(ctx, beneficiaryID)
	if err != nil {
		return MinedBlock{}, toRPCError(err)
	}

	api.log.Infow("rpc", "method", "blast_mineBlock", "blk", block.Header.Number, "hash", block.Hash)

	mined := MinedBlock{
		BlockNumber: hexutil.Uint64(block.Header.Number),
		Hash:        block.Hash,
		Miner:       block.Header.BeneficiaryID,
		Txs:         len(block.Trans.Values()),
	}

	return mined, nil
}

// GetWork returns a block template for the miner, including the
// algorithm and difficulty the eth_getWork form leaves out.
func (api *BlastAPI) GetWork(miner *string) (state.Work, error) {
	var beneficiaryID database.AccountID
	if miner != nil && *miner != "" {
		id, err := accountID(*miner)
		if err != nil {
			return state.Work{}, err
		}
		beneficiaryID = id
	}

	work, err := api.state.GetWork(beneficiaryID)
	if err != nil {
		return state.Work{}, toRPCError(err)
	}

	return work, nil
}

// ValidateChain walks the chain checking the linkage and the proof of
// work of every block.
func (api *BlastAPI) ValidateChain() bool {
	return api.state.ValidateChain()
}

// GetTxProof returns the merkle proof of a transaction's inclusion. A
// missing transaction is a null result.
func (api *BlastAPI) GetTxProof(hash string) (*state.TxProof, error) {
	proof, exists := api.state.QueryTxProof(hash)
	if !exists {
		return nil, nil
	}

	return &proof, nil
}
