// Package cmd contains the wallet app.
package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/spf13/cobra"
)

var (
	accountName string
	accountPath string
	rpcURL      string
	timeout     time.Duration
)

const (
	keyExtension = ".ecdsa"
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "private.ecdsa", "Path to the private key.")
	rootCmd.PersistentFlags().StringVarP(&accountPath, "account-path", "p", "zblock/accounts/", "Path to the directory with private keys.")
	rootCmd.PersistentFlags().StringVarP(&rpcURL, "rpc", "r", "http://localhost:8545", "JSON-RPC url of the node.")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Timeout for calls to the node.")
}

var rootCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Your simple BLAST wallet",
}

// Execute runs the wallet command line.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func getPrivateKeyPath() string {
	if !strings.HasSuffix(accountName, keyExtension) {
		accountName += keyExtension
	}

	return filepath.Join(accountPath, accountName)
}

// dial connects to the node and returns a context bounded by the timeout.
func dial() (*rpc.Client, context.Context, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	client, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}

	return client, ctx, cancel, nil
}
