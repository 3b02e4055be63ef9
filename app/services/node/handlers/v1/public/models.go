package public

import (
	"github.com/blastnetwork/blast/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

type info struct {
	Account database.AccountID `json:"account"`
	Name    string             `json:"name"`
	Balance *uint256.Int       `json:"balance"`
	Nonce   uint64             `json:"nonce"`
}

type actInfo struct {
	LatestBlock string `json:"latest_block"`
	Uncommitted int    `json:"uncommitted"`
	Accounts    []info `json:"accounts"`
}

type tx struct {
	Hash        string             `json:"hash"`
	FromAccount database.AccountID `json:"from"`
	FromName    string             `json:"from_name"`
	To          database.AccountID `json:"to"`
	ToName      string             `json:"to_name"`
	Value       *uint256.Int       `json:"value"`
	Fee         *uint256.Int       `json:"fee"`
	Nonce       uint64             `json:"nonce"`
	Data        hexutil.Bytes      `json:"data,omitempty"`
	TimeStamp   uint64             `json:"timestamp"`
	IsReward    bool               `json:"is_reward"`
	Sig         hexutil.Bytes      `json:"sig,omitempty"`
}

type block struct {
	Number        uint64             `json:"number"`
	Hash          string             `json:"hash"`
	PrevBlockHash string             `json:"prev_block_hash"`
	TimeStamp     uint64             `json:"timestamp"`
	ReceiptsRoot  string             `json:"receipts_root"`
	Difficulty    uint               `json:"difficulty"`
	Nonce         uint64             `json:"nonce"`
	Beneficiary   database.AccountID `json:"beneficiary"`
	BeneficiaryNm string             `json:"beneficiary_name"`
	Transactions  []tx               `json:"txs"`
}

type submitTx struct {
	From      string        `json:"from" validate:"required,account"`
	To        string        `json:"to" validate:"required,account"`
	Value     *uint256.Int  `json:"value" validate:"required"`
	Nonce     uint64        `json:"nonce"`
	Data      hexutil.Bytes `json:"data,omitempty"`
	Signature hexutil.Bytes `json:"signature,omitempty"`
	PublicKey hexutil.Bytes `json:"public_key,omitempty"`
}

func (st submitTx) toSignedTx() database.SignedTx {
	return database.SignedTx{
		Tx: database.Tx{
			From:  database.AccountID(st.From),
			To:    database.AccountID(st.To),
			Value: st.Value,
			Nonce: st.Nonce,
			Data:  st.Data,
		},
		Signature: st.Signature,
		PublicKey: st.PublicKey,
	}
}
