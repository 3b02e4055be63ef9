package cmd

import (
	"fmt"

	"github.com/blastnetwork/blast/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Print account for the specific wallet",
	RunE:  accountRun,
}

func init() {
	rootCmd.AddCommand(accountCmd)
}

func accountRun(cmd *cobra.Command, args []string) error {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		return err
	}

	accountID := database.PublicKeyToAccountID(privateKey.PublicKey)
	fmt.Fprintln(cmd.OutOrStdout(), accountID)

	return nil
}
