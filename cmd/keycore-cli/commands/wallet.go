package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Klingon-tech/klingnet-keycore/internal/router"
)

func createCmd(e *env) *cobra.Command {
	var showSecret bool
	cmd := &cobra.Command{
		Use:   "create <network>",
		Short: "Generate a new identity, replacing the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := e.client.CreateWallet(e.ctx(cmd), args[0])
			if err != nil {
				return err
			}
			return e.printWallet(resp, showSecret)
		},
	}
	cmd.Flags().BoolVar(&showSecret, "show-secret", false, "also print the private key")
	return cmd
}

func importCmd(e *env) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "import <network>",
		Short: "Replace the active identity with an existing private key",
		Long: "Replace the active identity with an existing private key.\n" +
			"AccountBased keys are 64 hex characters; KeypairBased keys are\n" +
			"64 comma-separated byte values. Without --key the key is read\n" +
			"from the terminal without echo.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				var err error
				key, err = e.readSecret("Private key: ")
				if err != nil {
					return fmt.Errorf("read private key: %w", err)
				}
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return fmt.Errorf("private key is empty")
			}
			resp, err := e.client.ImportWallet(e.ctx(cmd), args[0], key)
			if err != nil {
				return err
			}
			return e.printWallet(resp, false)
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "private key (prompted when omitted)")
	return cmd
}

func accountsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts <network>",
		Short: "Show the active address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := e.client.Accounts(e.ctx(cmd), args[0])
			if err != nil {
				return err
			}
			if len(accounts) == 0 {
				fmt.Fprintln(e.out, "No active identity.")
				return nil
			}
			for _, a := range accounts {
				fmt.Fprintln(e.out, a)
			}
			return nil
		},
	}
}

func (e *env) printWallet(resp *router.Response, showSecret bool) error {
	if done, err := e.printJSON(resp); done {
		return err
	}
	if resp.Wallet == nil {
		return fmt.Errorf("response carries no wallet")
	}
	fmt.Fprintf(e.out, "Network:  %s\n", resp.Network)
	fmt.Fprintf(e.out, "Address:  %s\n", resp.Wallet.Address)
	fmt.Fprintf(e.out, "Mnemonic: %s\n", resp.Wallet.Mnemonic)
	if showSecret {
		fmt.Fprintf(e.out, "Private:  %v\n", resp.Wallet.PrivateKey)
	}
	return nil
}
