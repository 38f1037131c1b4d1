package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jask/phone/internal/config"
	applog "github.com/jask/phone/internal/log"
	"github.com/jask/phone/internal/phone"
	"github.com/jask/phone/internal/secrets"
	"github.com/jask/phone/internal/sipua"
	"github.com/jask/phone/internal/tui"
)

const (
	version     = "0.1.0"
	stopTimeout = 5 * time.Second
)

// options are the flags shared by every subcommand.
type options struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:   "phone",
		Short: "Terminal SIP softphone",
		Long: `phone registers one SIP account and shows a dial pad with a single call
button. The button places a call, answers an incoming one or hangs up,
depending on the call state. Keys pressed during a call are sent as DTMF.

Settings come from flags, PHONE_* environment variables and
$HOME/.config/phone/config.toml, in that order. Keep the SIP password in
the secret store with "phone password set".`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPhone(cmd.Context(), o, cmd.Flags())
		},
	}

	root.PersistentFlags().StringVarP(&o.configFile, "config", "c", "",
		"config file path (default $HOME/.config/phone/config.toml)")
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newPasswordCmd(o))
	root.AddCommand(newConfigCmd(o))
	return root
}

// passwordSource is the part of the secret store the launcher reads.
type passwordSource interface {
	FetchPassword(identity string) (string, error)
}

// resolvePassword fills an empty password from the secret store. A missing
// entry is not an error; some servers accept unauthenticated registration.
func resolvePassword(cfg *config.Config, src passwordSource) error {
	if cfg.Account.Password != "" || src == nil {
		return nil
	}
	pw, err := src.FetchPassword(cfg.Account.Identity())
	switch {
	case errors.Is(err, secrets.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("read password: %w", err)
	}
	cfg.Account.Password = pw
	return nil
}

func loadConfig(o *options, fs *pflag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(o.configFile, fs)
	if err != nil {
		return config.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func runPhone(ctx context.Context, o *options, fs *pflag.FlagSet) error {
	cfg, err := loadConfig(o, fs)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	store, err := secrets.Default()
	if err != nil {
		return fmt.Errorf("secret store: %w", err)
	}
	if err := resolvePassword(&cfg, store); err != nil {
		return err
	}

	logger, closer, err := applog.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer closer.Close()

	set, err := sipua.FromConfig(cfg)
	if err != nil {
		return err
	}
	agent, err := sipua.New(set, logger)
	if err != nil {
		return fmt.Errorf("sip agent: %w", err)
	}

	w := phone.New(agent, phone.Options{AutoAnswer: cfg.Account.AutoAnswer}, logger)
	if err := w.Start(); err != nil {
		return err
	}
	logger.Info("phone started", "identity", cfg.Account.Identity(), "server", cfg.Account.ServerURL)

	from := fmt.Sprintf("%s <%s>", cfg.Account.Display(), cfg.Account.Identity())
	p := tea.NewProgram(tui.New(w, agent.Notifications(), from), tea.WithAltScreen(), tea.WithContext(ctx))
	_, runErr := p.Run()
	if errors.Is(runErr, tea.ErrProgramKilled) && ctx.Err() != nil {
		runErr = nil
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := agent.Stop(stopCtx); err != nil {
		logger.Warn("stop agent", "err", err)
	}
	logger.Info("phone stopped")
	return runErr
}
