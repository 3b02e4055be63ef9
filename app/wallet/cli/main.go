package main

import "github.com/blastnetwork/blast/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
