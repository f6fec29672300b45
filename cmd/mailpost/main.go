// Command mailpost polls a mailbox and turns unread messages into
// content records.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mailpost/internal/config"
	"mailpost/internal/credential"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// rootOptions holds flags shared by all subcommands.
type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "mailpost",
		Short:         "Post-by-email ingestion",
		Long:          "mailpost polls a mailbox for unread messages and converts them into content records.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
	}

	cmd.PersistentFlags().StringVar(
		&opts.configPath, "config", config.DefaultPath(), "path to config file")
	cmd.PersistentFlags().BoolVarP(
		&opts.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newCheckCmd(opts),
		newRunCmd(opts),
		newLogCmd(opts),
		newOwnerCmd(opts),
		newSecretCmd(),
	)

	return cmd
}

// loadConfig reads the config file and fills in the mailbox secret from
// the system keyring when the file leaves it unset.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	if cfg.MailserverPass == "" || cfg.MailserverPass == config.DefaultMailserverPass {
		if secret, err := credential.Get(credential.KeyMailserverPass); err == nil {
			cfg.MailserverPass = secret
		}
	}

	return cfg, nil
}
