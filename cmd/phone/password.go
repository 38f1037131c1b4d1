package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jask/phone/internal/secrets"
)

// passwordStore is the secret store as the password commands use it.
type passwordStore interface {
	StorePassword(identity, password string) error
	DeletePassword(identity string) error
}

func newPasswordCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Manage the SIP password in the local secret store",
	}

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Prompt for the account password and store it",
		Long: `Prompt for the SIP password of the configured account (caller@realm) and
store it encrypted in the user config directory. The password is read from
stdin when it is not a terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(o, cmd.Flags())
			if err != nil {
				return err
			}
			store, err := secrets.Default()
			if err != nil {
				return fmt.Errorf("secret store: %w", err)
			}
			pw, err := readPassword(os.Stdin, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return setPassword(store, cfg.Account.Identity(), pw, cmd.OutOrStdout())
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored account password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(o, cmd.Flags())
			if err != nil {
				return err
			}
			store, err := secrets.Default()
			if err != nil {
				return fmt.Errorf("secret store: %w", err)
			}
			return clearPassword(store, cfg.Account.Identity(), cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(setCmd, clearCmd)
	return cmd
}

func setPassword(store passwordStore, identity, pw string, out io.Writer) error {
	if strings.HasPrefix(identity, "@") || strings.HasSuffix(identity, "@") {
		return fmt.Errorf("caller and realm must be configured before storing a password")
	}
	if pw == "" {
		return fmt.Errorf("empty password")
	}
	if err := store.StorePassword(identity, pw); err != nil {
		return fmt.Errorf("store password: %w", err)
	}
	fmt.Fprintf(out, "password stored for %s\n", identity)
	return nil
}

func clearPassword(store passwordStore, identity string, out io.Writer) error {
	if err := store.DeletePassword(identity); err != nil {
		return fmt.Errorf("delete password: %w", err)
	}
	fmt.Fprintf(out, "password cleared for %s\n", identity)
	return nil
}

// readPassword reads one line without echo when in is a terminal.
func readPassword(in *os.File, prompt io.Writer) (string, error) {
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(prompt, "SIP password: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	return readLine(in)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
