package cmd

import (
	"fmt"

	"github.com/blastnetwork/blast/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
)

var (
	to    string
	value string
	nonce int64
	data  []byte
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send transaction",
	RunE:  sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Account receiving the value.")
	sendCmd.Flags().StringVarP(&value, "value", "v", "0", "Value to send in base units.")
	sendCmd.Flags().Int64VarP(&nonce, "nonce", "n", -1, "Nonce of the transaction, the recorded nonce when negative.")
	sendCmd.Flags().BytesHexVarP(&data, "data", "d", nil, "Data to send.")
	sendCmd.MarkFlagRequired("to")
}

func sendRun(cmd *cobra.Command, args []string) error {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		return err
	}

	from := database.PublicKeyToAccountID(privateKey.PublicKey)

	amount, err := uint256.FromDecimal(value)
	if err != nil {
		return fmt.Errorf("value %q: %w", value, err)
	}

	client, ctx, cancel, err := dial()
	if err != nil {
		return err
	}
	defer cancel()
	defer client.Close()

	txNonce := uint64(nonce)
	if nonce < 0 {
		var recorded hexutil.Uint64
		if err := client.CallContext(ctx, &recorded, "eth_getTransactionCount", from, "latest"); err != nil {
			return err
		}
		txNonce = uint64(recorded)
	}

	tx, err := database.NewTx(from, database.AccountID(to), amount, txNonce, data)
	if err != nil {
		return err
	}

	signedTx, err := tx.Sign(privateKey)
	if err != nil {
		return err
	}

	sendArgs := map[string]any{
		"from":      signedTx.From,
		"to":        signedTx.To,
		"value":     (*hexutil.Big)(amount.ToBig()),
		"nonce":     hexutil.Uint64(signedTx.Nonce),
		"data":      hexutil.Bytes(signedTx.Data),
		"signature": signedTx.Signature,
		"publicKey": signedTx.PublicKey,
	}

	var txHash string
	if err := client.CallContext(ctx, &txHash, "eth_sendTransaction", sendArgs); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), txHash)

	return nil
}
