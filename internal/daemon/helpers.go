package daemon

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/term"
)

// serverGrace is added to the router timeout for the HTTP write deadline
// so a timed-out request still gets its envelope written.
const serverGrace = 5 * time.Second

// PassphraseFunc returns the keystore passphrase. env names the
// environment variable configured in keystore.passphrase_env.
type PassphraseFunc func(env string) ([]byte, error)

// EnvOrPrompt reads the passphrase from env, falling back to a no-echo
// prompt when stdin is a terminal.
func EnvOrPrompt(env string) ([]byte, error) {
	if v := os.Getenv(env); v != "" {
		return []byte(v), nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("$%s is not set and stdin is not a terminal", env)
	}
	return ReadPassword("Keystore passphrase: ")
}

// ReadPassword prompts on stderr and reads a line without echo.
func ReadPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}
