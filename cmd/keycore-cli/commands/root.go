// Package commands implements the keycore-cli command tree.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Klingon-tech/klingnet-keycore/internal/client"
	"github.com/Klingon-tech/klingnet-keycore/internal/router"
)

// env carries the state shared by every subcommand.
type env struct {
	server  string
	timeout time.Duration
	jsonOut bool

	out        io.Writer
	readSecret func(prompt string) (string, error)
	client     *client.Client
}

// Execute runs the CLI against os.Args.
func Execute() error {
	return NewRootCmd(os.Stdout, promptSecret).Execute()
}

// NewRootCmd builds the command tree. readSecret is used when a secret
// is needed and was not passed as a flag.
func NewRootCmd(out io.Writer, readSecret func(prompt string) (string, error)) *cobra.Command {
	e := &env{out: out, readSecret: readSecret}

	root := &cobra.Command{
		Use:           "keycore-cli",
		Short:         "Manage and sign with keycored identities",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			e.client = client.NewWithTimeout(e.server, e.timeout)
			return nil
		},
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&e.server, "server", client.DefaultEndpoint, "keycored request endpoint")
	root.PersistentFlags().DurationVar(&e.timeout, "timeout", 90*time.Second, "request timeout")
	root.PersistentFlags().BoolVar(&e.jsonOut, "json", false, "print the raw response envelope, secrets included")

	root.AddCommand(
		createCmd(e),
		importCmd(e),
		accountsCmd(e),
		signCmd(e),
		submitCmd(e),
	)
	return root
}

func (e *env) ctx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// printJSON writes resp as indented JSON when --json is set.
func (e *env) printJSON(resp *router.Response) (bool, error) {
	if !e.jsonOut {
		return false, nil
	}
	b, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return true, err
	}
	fmt.Fprintln(e.out, string(b))
	return true, nil
}

func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return "", err
	}
	return string(secret), nil
}
