package rpcgrp

import (
	"strconv"

	"github.com/blastnetwork/blast/foundation/blockchain/state"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Web3API implements the web3_ namespace.
type Web3API struct{}

// ClientVersion returns the node client version.
func (api *Web3API) ClientVersion() string {
	return ClientVersion
}

// Sha3 returns the keccak-256 of the input.
func (api *Web3API) Sha3(input hexutil.Bytes) hexutil.Bytes {
	return crypto.Keccak256(input)
}

// =============================================================================

// NetAPI implements the net_ namespace.
type NetAPI struct {
	state *state.State
}

// Version returns the network id as a decimal string.
func (api *NetAPI) Version() string {
	return strconv.FormatUint(api.state.RetrieveGenesis().NetworkID, 10)
}

// ChainId returns the chain id.
func (api *NetAPI) ChainId() hexutil.Uint64 {
	return hexutil.Uint64(api.state.RetrieveGenesis().ChainID)
}

// Listening reports the node is accepting calls.
func (api *NetAPI) Listening() bool {
	return true
}

// PeerCount is always zero, the node runs alone.
func (api *NetAPI) PeerCount() hexutil.Uint {
	return 0
}
