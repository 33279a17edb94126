package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"forumsync/internal/config"
	"forumsync/internal/encryption"
)

// ErrNoAPIToken is returned when no token source yields an API token.
var ErrNoAPIToken = errors.New("no forum api token: set " + EnvAPIToken + " or run `fsync config token`")

// PassphraseFunc supplies the passphrase that unlocks the stored token.
type PassphraseFunc func() (string, error)

// ResolveToken finds the forum API token. Order: the FSYNC_API_TOKEN
// environment variable, forum.token from the config, then the encrypted
// token file, unlocked with FSYNC_PASSPHRASE or the passphrase func.
func ResolveToken(cfg config.ForumConfig, store encryption.TokenStore, passphrase PassphraseFunc) (string, error) {
	if token := strings.TrimSpace(os.Getenv(EnvAPIToken)); token != "" {
		return token, nil
	}
	if token := strings.TrimSpace(cfg.Token); token != "" {
		return token, nil
	}
	if store == nil || !store.HasToken() {
		return "", ErrNoAPIToken
	}

	pass := os.Getenv(EnvPassphrase)
	if pass == "" {
		if passphrase == nil {
			return "", fmt.Errorf("api token is encrypted and %s is not set", EnvPassphrase)
		}
		var err error
		if pass, err = passphrase(); err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
	}

	token, err := store.LoadToken(pass)
	if err != nil {
		return "", fmt.Errorf("loading api token: %w", err)
	}
	return token, nil
}

// ReadSecret prints prompt to out and reads one line from in without echo
// when in is a terminal.
func ReadSecret(in *os.File, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	if term.IsTerminal(int(in.Fd())) {
		b, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// TerminalPassphrase prompts on stderr and reads the passphrase from stdin.
func TerminalPassphrase() PassphraseFunc {
	return func() (string, error) {
		return ReadSecret(os.Stdin, os.Stderr, "Passphrase: ")
	}
}
