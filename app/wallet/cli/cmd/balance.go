package cmd

import (
	"fmt"

	"github.com/blastnetwork/blast/foundation/blockchain/database"
	"github.com/blastnetwork/blast/foundation/blockchain/genesis"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print your balance.",
	RunE:  balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func balanceRun(cmd *cobra.Command, args []string) error {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		return err
	}

	accountID := database.PublicKeyToAccountID(privateKey.PublicKey)
	fmt.Fprintln(cmd.OutOrStdout(), "For Account:", accountID)

	client, ctx, cancel, err := dial()
	if err != nil {
		return err
	}
	defer cancel()
	defer client.Close()

	var balance hexutil.Big
	if err := client.CallContext(ctx, &balance, "eth_getBalance", accountID, "latest"); err != nil {
		return err
	}

	var nonce hexutil.Uint64
	if err := client.CallContext(ctx, &nonce, "eth_getTransactionCount", accountID, "latest"); err != nil {
		return err
	}

	amount, overflow := uint256.FromBig(balance.ToInt())
	if overflow {
		return fmt.Errorf("balance %s overflows 256 bits", balance.String())
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Balance: %s BLAST (%s base units)\n", formatCoins(amount, genesis.Decimals), amount.Dec())
	fmt.Fprintf(cmd.OutOrStdout(), "Nonce: %d\n", uint64(nonce))

	return nil
}

// formatCoins renders base units as whole coins with the fraction
// trimmed of trailing zeros.
func formatCoins(amount *uint256.Int, decimals uint8) string {
	unit := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))

	whole, frac := new(uint256.Int).DivMod(amount, unit, new(uint256.Int))
	if frac.IsZero() {
		return whole.Dec()
	}

	s := frac.Dec()
	for len(s) < int(decimals) {
		s = "0" + s
	}
	for s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}

	return whole.Dec() + "." + s
}
