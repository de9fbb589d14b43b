// derive_address.go prints the address of a private key file for a network.
// Usage: go run scripts/derive_address.go <network> <keyfile>
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/Klingon-tech/klingnet-keycore/internal/solrpc"
	"github.com/Klingon-tech/klingnet-keycore/internal/wallet"
	"github.com/Klingon-tech/klingnet-keycore/internal/wallet/account"
	"github.com/Klingon-tech/klingnet-keycore/internal/wallet/keypair"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: derive_address <network> <keyfile>")
		os.Exit(1)
	}
	network, err := wallet.ParseNetwork(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	data, err := os.ReadFile(os.Args[2])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var p wallet.Provider
	switch network {
	case wallet.AccountBased:
		p = account.New(0)
	default:
		p = keypair.New(nil, solrpc.Finalized)
	}
	id, err := p.Import(strings.TrimSpace(string(data)))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer id.Wipe()

	fmt.Printf("network=%s\n", network)
	fmt.Printf("address=%s\n", id.Address())
	fmt.Printf("fingerprint=%s\n", id.Fingerprint())
}
