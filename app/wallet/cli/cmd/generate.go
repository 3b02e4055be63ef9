package cmd

import (
	"fmt"
	"os"

	"github.com/blastnetwork/blast/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate new key pair",
	RunE:  generateRun,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func generateRun(cmd *cobra.Command, args []string) error {
	path := getPrivateKeyPath()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("key file %s already exists", path)
	}

	kp, err := signature.GenerateKeyPair()
	if err != nil {
		return err
	}

	if err := crypto.SaveECDSA(path, kp.PrivateKey); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), kp.Address)

	return nil
}
