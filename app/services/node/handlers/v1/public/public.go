// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/blastnetwork/blast/business/web/errs"
	"github.com/blastnetwork/blast/foundation/blockchain/database"
	"github.com/blastnetwork/blast/foundation/blockchain/state"
	"github.com/blastnetwork/blast/foundation/events"
	"github.com/blastnetwork/blast/foundation/nameservice"
	"github.com/blastnetwork/blast/foundation/validate"
	"github.com/blastnetwork/blast/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of public ledger endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// SubmitTransaction adds a new wallet transaction to the mempool.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req submitTx
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if err := validate.Check(req); err != nil {
		return err
	}

	signedTx := req.toSignedTx()

	h.Log.Infow("add user tran", "traceid", v.TraceID, "from:nonce", signedTx, "to", signedTx.To, "value", signedTx.Value)

	tran, blockNumber, err := h.State.SubmitTransactionReceipt(signedTx)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	resp := struct {
		Status      string `json:"status"`
		Hash        string `json:"hash"`
		Fee         string `json:"fee"`
		BlockNumber uint64 `json:"block_number"`
	}{
		Status:      "transaction added to mempool",
		Hash:        tran.HashHex(),
		Fee:         tran.Fee.Dec(),
		BlockNumber: blockNumber,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.RetrieveGenesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}

// Mempool returns the set of uncommitted transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var filter database.AccountID
	if acct := web.Param(r, "account"); acct != "" {
		accountID, err := database.ToAccountID(acct)
		if err != nil {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
		filter = accountID
	}

	mempool := h.State.RetrieveMempool()

	trans := make([]tx, 0, len(mempool))
	for _, tran := range mempool {
		if filter != "" && filter != tran.From && filter != tran.To {
			continue
		}

		trans = append(trans, h.toTx(tran))
	}

	return web.Respond(ctx, w, trans, http.StatusOK)
}

// Accounts returns the current balances for all users.
func (h Handlers) Accounts(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountID := web.Param(r, "account")

	var blkAccounts map[database.AccountID]database.Account
	switch accountID {
	case "":
		blkAccounts = h.State.RetrieveAccounts()

	default:
		if !database.AccountID(accountID).IsAccountID() {
			return errs.NewTrusted(fmt.Errorf("%w: %q", database.ErrInvalidAccount, accountID), http.StatusBadRequest)
		}

		account, err := h.State.QueryAccounts(database.AccountID(accountID))
		if err != nil {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		blkAccounts = map[database.AccountID]database.Account{account.AccountID: account}
	}

	acts := make([]info, 0, len(blkAccounts))
	for accountID, blkInfo := range blkAccounts {
		act := info{
			Account: accountID,
			Name:    h.NS.Lookup(accountID),
			Balance: blkInfo.Balance.Clone(),
			Nonce:   blkInfo.Nonce,
		}
		acts = append(acts, act)
	}

	ai := actInfo{
		LatestBlock: h.State.RetrieveLatestBlock().Hash,
		Uncommitted: h.State.RetrieveMempoolLength(),
		Accounts:    acts,
	}

	return web.Respond(ctx, w, ai, http.StatusOK)
}

// BlocksByNumber returns all the blocks based on the specified from/to values.
func (h Handlers) BlocksByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	from, err := parseNumber(web.Param(r, "from"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	to, err := parseNumber(web.Param(r, "to"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if from != state.QueryLatest && from > to {
		return errs.NewTrusted(errors.New("from greater than to"), http.StatusBadRequest)
	}

	dbBlocks := h.State.QueryBlocksByNumber(from, to)
	if len(dbBlocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	return web.Respond(ctx, w, h.toBlocks(dbBlocks), http.StatusOK)
}

// BlockByHash returns the block with the specified hash.
func (h Handlers) BlockByHash(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	hash := web.Param(r, "hash")

	dbBlock, exists := h.State.QueryBlockByHash(hash)
	if !exists {
		return errs.NewTrusted(fmt.Errorf("block %s not found", hash), http.StatusNotFound)
	}

	return web.Respond(ctx, w, h.toBlock(dbBlock), http.StatusOK)
}

// BlocksByAccount returns all the blocks and their details.
func (h Handlers) BlocksByAccount(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountID := database.AccountID(web.Param(r, "account"))
	if accountID != "" && !accountID.IsAccountID() {
		return errs.NewTrusted(fmt.Errorf("%w: %q", database.ErrInvalidAccount, accountID), http.StatusBadRequest)
	}

	dbBlocks := h.State.QueryBlocksByAccount(accountID)
	if len(dbBlocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	return web.Respond(ctx, w, h.toBlocks(dbBlocks), http.StatusOK)
}

// TxProof returns the merkle proof that a transaction is part of a block.
func (h Handlers) TxProof(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	hash := web.Param(r, "hash")

	proof, exists := h.State.QueryTxProof(hash)
	if !exists {
		return errs.NewTrusted(fmt.Errorf("transaction %s not found", hash), http.StatusNotFound)
	}

	resp := struct {
		state.TxProof
		Verified bool `json:"verified"`
	}{
		TxProof:  proof,
		Verified: state.VerifyTxProof(proof),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// ValidateChain walks the chain checking the linkage and the proof of work
// of every block.
func (h Handlers) ValidateChain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	latest := h.State.RetrieveLatestBlock()

	resp := struct {
		Valid  bool   `json:"valid"`
		Length uint64 `json:"length"`
	}{
		Valid:  h.State.ValidateChain(),
		Length: latest.Header.Number + 1,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// =============================================================================

func (h Handlers) toTx(tran database.BlockTx) tx {
	return tx{
		Hash:        tran.HashHex(),
		FromAccount: tran.From,
		FromName:    h.NS.Lookup(tran.From),
		To:          tran.To,
		ToName:      h.NS.Lookup(tran.To),
		Value:       tran.Value,
		Fee:         tran.Fee,
		Nonce:       tran.Nonce,
		Data:        tran.Data,
		TimeStamp:   tran.TimeStamp,
		IsReward:    tran.IsReward,
		Sig:         tran.Signature,
	}
}

func (h Handlers) toBlock(blk database.Block) block {
	values := blk.Trans.Values()

	trans := make([]tx, len(values))
	for i, tran := range values {
		trans[i] = h.toTx(tran)
	}

	return block{
		Number:        blk.Header.Number,
		Hash:          blk.Hash,
		PrevBlockHash: blk.Header.PrevBlockHash,
		TimeStamp:     blk.Header.TimeStamp,
		ReceiptsRoot:  blk.Header.ReceiptsRoot,
		Difficulty:    blk.Header.Difficulty,
		Nonce:         blk.Header.Nonce,
		Beneficiary:   blk.Header.BeneficiaryID,
		BeneficiaryNm: h.NS.Lookup(blk.Header.BeneficiaryID),
		Transactions:  trans,
	}
}

func (h Handlers) toBlocks(dbBlocks []database.Block) []block {
	blocks := make([]block, len(dbBlocks))
	for i, blk := range dbBlocks {
		blocks[i] = h.toBlock(blk)
	}

	return blocks
}

// parseNumber accepts a block number or the word latest.
func parseNumber(s string) (uint64, error) {
	if s == "latest" || s == "" {
		return state.QueryLatest, nil
	}

	return strconv.ParseUint(s, 10, 64)
}
