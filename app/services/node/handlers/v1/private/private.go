// Package private maintains the group of handlers for miner and operator
// access.
package private

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/blastnetwork/blast/business/web/errs"
	"github.com/blastnetwork/blast/foundation/blockchain/database"
	"github.com/blastnetwork/blast/foundation/blockchain/state"
	"github.com/blastnetwork/blast/foundation/nameservice"
	"github.com/blastnetwork/blast/foundation/validate"
	"github.com/blastnetwork/blast/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of private ledger endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	latestBlock := h.State.RetrieveLatestBlock()

	status := struct {
		LatestBlockHash   string             `json:"latest_block_hash"`
		LatestBlockNumber uint64             `json:"latest_block_number"`
		Difficulty        uint               `json:"difficulty"`
		Algorithm         string             `json:"algorithm"`
		Uncommitted       int                `json:"uncommitted"`
		Beneficiary       database.AccountID `json:"beneficiary"`
		Reward            string             `json:"reward"`
	}{
		LatestBlockHash:   latestBlock.Hash,
		LatestBlockNumber: latestBlock.Header.Number,
		Difficulty:        h.State.RetrieveDifficulty(),
		Algorithm:         h.State.RetrieveAlgorithm(),
		Uncommitted:       h.State.RetrieveMempoolLength(),
		Beneficiary:       h.State.RetrieveBeneficiary(),
		Reward:            h.State.RewardForHeight().Dec(),
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// GetWork hands a block template to an external miner.
func (h Handlers) GetWork(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	beneficiaryID := database.AccountID(web.Param(r, "miner"))

	work, err := h.State.GetWork(beneficiaryID)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, work, http.StatusOK)
}

// SubmitWork accepts a solution for work handed out by GetWork.
func (h Handlers) SubmitWork(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req struct {
		Nonce  uint64 `json:"nonce"`
		Digest string `json:"digest" validate:"omitempty,hexadecimal"`
		Header string `json:"header" validate:"required,hexadecimal"`
	}
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if err := validate.Check(req); err != nil {
		return err
	}

	h.Log.Infow("submit work", "traceid", v.TraceID, "nonce", req.Nonce, "digest", req.Digest)

	block, err := h.State.SubmitWork(req.Nonce, req.Digest, req.Header)
	if err != nil {
		switch {
		case errors.Is(err, state.ErrUnknownWork):
			return errs.NewTrusted(err, http.StatusNotFound)
		case errors.Is(err, state.ErrStaleWork):
			return errs.NewTrusted(err, http.StatusConflict)
		}
		return errs.NewTrusted(err, http.StatusNotAcceptable)
	}

	return web.Respond(ctx, w, database.NewBlockData(block), http.StatusOK)
}

// MineBlock mines the pending transactions into a block on request.
func (h Handlers) MineBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	beneficiaryID := database.AccountID(web.Param(r, "miner"))

	block, err := h.State.MineNewBlock(ctx, beneficiaryID)
	if err != nil {
		switch {
		case errors.Is(err, state.ErrStaleWork):
			return errs.NewTrusted(err, http.StatusConflict)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return errs.NewTrusted(err, http.StatusRequestTimeout)
		}
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, database.NewBlockData(block), http.StatusOK)
}
