package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Klingon-tech/klingnet-keycore/internal/router"
)

// signFlags maps CLI flags onto txData fields. Only flags the user set
// are sent, so the daemon's defaults apply to the rest.
var signFlags = []struct {
	flag, field, usage string
}{
	{"to", "to", "recipient address"},
	{"amount", "amount", "amount in the chain's main unit (ETH or SOL)"},
	{"value", "value", "AccountBased amount in wei"},
	{"data", "data", "AccountBased call data (0x-hex)"},
	{"from", "from", "expected sender; rejected if it is not the active address"},
	{"chain-id", "chainId", "AccountBased chain ID"},
	{"nonce", "nonce", "AccountBased nonce"},
	{"gas-limit", "gasLimit", "AccountBased gas limit"},
	{"gas-price", "gasPrice", "AccountBased legacy gas price in wei"},
	{"max-fee", "maxFeePerGas", "AccountBased EIP-1559 fee cap in wei"},
	{"max-priority-fee", "maxPriorityFeePerGas", "AccountBased EIP-1559 tip in wei"},
}

func signCmd(e *env) *cobra.Command {
	var signOnly bool
	cmd := &cobra.Command{
		Use:   "sign <network>",
		Short: "Sign a transfer with the active identity",
		Long: "Sign a transfer with the active identity. KeypairBased transfers\n" +
			"are also submitted and confirmed unless --sign-only is given.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txData := txDataFromFlags(cmd.Flags())
			if signOnly {
				txData["signOnly"] = true
			}
			resp, err := e.client.SignTransaction(e.ctx(cmd), args[0], txData)
			if err != nil {
				// A failed submission still returns the signed bytes.
				if resp != nil && resp.RawTransaction != "" {
					fmt.Fprintf(e.out, "Raw:       %s\n", resp.RawTransaction)
				}
				return err
			}
			return e.printTx(resp)
		},
	}
	for _, f := range signFlags {
		cmd.Flags().String(f.flag, "", f.usage)
	}
	cmd.Flags().BoolVar(&signOnly, "sign-only", false, "KeypairBased: sign without submitting")
	return cmd
}

func txDataFromFlags(fs *pflag.FlagSet) map[string]any {
	txData := make(map[string]any)
	for _, f := range signFlags {
		if !fs.Changed(f.flag) {
			continue
		}
		v, _ := fs.GetString(f.flag)
		txData[f.field] = v
	}
	return txData
}

func submitCmd(e *env) *cobra.Command {
	var raw string
	cmd := &cobra.Command{
		Use:   "submit <network>",
		Short: "Broadcast a previously signed KeypairBased transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if raw == "" {
				return fmt.Errorf("--raw is required")
			}
			resp, err := e.client.SubmitTransaction(e.ctx(cmd), args[0], raw)
			if err != nil {
				return err
			}
			return e.printTx(resp)
		},
	}
	cmd.Flags().StringVar(&raw, "raw", "", "base64 signed transaction, as printed by sign")
	return cmd
}

func (e *env) printTx(resp *router.Response) error {
	if done, err := e.printJSON(resp); done {
		return err
	}
	fmt.Fprintf(e.out, "Signature: %s\n", resp.Signature)
	if resp.Hash != "" && resp.Hash != resp.Signature {
		fmt.Fprintf(e.out, "Hash:      %s\n", resp.Hash)
	}
	if resp.RawTransaction != "" {
		fmt.Fprintf(e.out, "Raw:       %s\n", resp.RawTransaction)
	}
	fmt.Fprintf(e.out, "Status:    %s\n", resp.Status)
	if resp.Slot != 0 {
		fmt.Fprintf(e.out, "Slot:      %d\n", resp.Slot)
	}
	if resp.Replayed {
		fmt.Fprintln(e.out, "Already confirmed, not resent.")
	}
	return nil
}
