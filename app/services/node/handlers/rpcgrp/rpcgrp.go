// Package rpcgrp maintains the JSON-RPC 2.0 api of the node. The methods
// follow the names wallets and miners already speak (web3_, net_, eth_)
// plus the blast_ namespace for ledger specific calls.
package rpcgrp

import (
	"errors"
	"fmt"

	"github.com/blastnetwork/blast/foundation/blockchain/database"
	"github.com/blastnetwork/blast/foundation/blockchain/state"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// ClientVersion is reported by web3_clientVersion.
const ClientVersion = "BLAST/1.0.0"

// Config contains all the mandatory systems required by the api.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// NewServer constructs a JSON-RPC server with every namespace registered.
// The server can be mounted for HTTP directly and for websockets through
// its WebsocketHandler.
func NewServer(cfg Config) (*rpc.Server, error) {
	srv := rpc.NewServer()

	apis := []struct {
		namespace string
		service   any
	}{
		{"web3", &Web3API{}},
		{"net", &NetAPI{state: cfg.State}},
		{"eth", &EthAPI{log: cfg.Log, state: cfg.State}},
		{"blast", &BlastAPI{log: cfg.Log, state: cfg.State}},
	}

	for _, api := range apis {
		if err := srv.RegisterName(api.namespace, api.service); err != nil {
			srv.Stop()
			return nil, fmt.Errorf("register %s api: %w", api.namespace, err)
		}
	}

	return srv, nil
}

// =============================================================================

// Error codes used beside the ones reserved by JSON-RPC 2.0.
const (
	codeInvalidParams = -32602
	codeServerError   = -32000
)

// rpcError carries a JSON-RPC error code back to the caller.
type rpcError struct {
	code int
	msg  string
}

func (e *rpcError) Error() string  { return e.msg }
func (e *rpcError) ErrorCode() int { return e.code }

// invalidParams reports a malformed argument.
func invalidParams(format string, args ...any) error {
	return &rpcError{code: codeInvalidParams, msg: fmt.Sprintf(format, args...)}
}

// toRPCError maps ledger errors onto JSON-RPC error codes.
func toRPCError(err error) error {
	if errors.Is(err, database.ErrInvalidAccount) {
		return &rpcError{code: codeInvalidParams, msg: err.Error()}
	}

	return &rpcError{code: codeServerError, msg: err.Error()}
}

// accountID validates and canonicalizes an address argument.
func accountID(address string) (database.AccountID, error) {
	id, err := database.ToAccountID(address)
	if err != nil {
		return "", invalidParams("invalid address %q", address)
	}

	return id, nil
}
