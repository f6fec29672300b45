package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"mailpost/internal/config"
	"mailpost/internal/credential"
	"mailpost/internal/ingest"
	"mailpost/internal/mailbox"
	"mailpost/internal/sched"
	"mailpost/internal/store"
)

// openOrchestrator wires the store, mailbox client, and orchestrator
// from the loaded config. The caller closes the returned store.
func openOrchestrator(
	opts *rootOptions,
) (*ingest.Orchestrator, *store.SQLiteStore, *config.Config, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, nil, err
	}

	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, nil, nil, err
	}

	orch := ingest.New(*cfg, ingest.Deps{
		Client:   mailbox.NewIMAPClient(),
		State:    st,
		Log:      st,
		Resolver: st,
		Sink:     st,
		Logger:   slog.Default(),
	})

	return orch, st, cfg, nil
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run a single mail-check cycle now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			orch, st, _, err := openOrchestrator(opts)
			if err != nil {
				return err
			}
			defer st.Close()

			return orch.CheckMail(cmd.Context())
		},
	}
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Check mail on a schedule until interrupted",
		Long:  "Runs a mail-check cycle at the configured interval. SIGHUP triggers an immediate check and re-arms the next scheduled one.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			orch, st, cfg, err := openOrchestrator(opts)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(
				cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			scheduler := sched.New(cfg.CheckInterval, orch.CheckMail, slog.Default())

			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)
			go func() {
				for range hup {
					scheduler.CheckNow()
				}
			}()

			slog.Info("scheduler started", "interval", cfg.CheckInterval)
			scheduler.Run(ctx)
			return nil
		},
	}
}

func newLogCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Print recent run-log entries, most recent first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			st, err := store.NewSQLiteStore(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.RecentLog(cmd.Context(), limit)
			if err != nil {
				return err
			}

			for _, e := range entries {
				fmt.Printf("%s  %s\n",
					e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Message)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	return cmd
}

func newOwnerCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "owner",
		Short: "Manage known author identities",
	}

	var canPublish bool
	addCmd := &cobra.Command{
		Use:   "add <email>",
		Short: "Register an owner resolvable by sender address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			st, err := store.NewSQLiteStore(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			id, err := st.AddOwner(cmd.Context(), args[0], canPublish)
			if err != nil {
				return err
			}

			fmt.Printf("owner %d: %s (publish: %v)\n", id, args[0], canPublish)
			return nil
		},
	}
	addCmd.Flags().BoolVar(&canPublish, "publish", false,
		"allow this owner's posts to publish directly")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List known owners",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			st, err := store.NewSQLiteStore(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			owners, err := st.ListOwners(cmd.Context())
			if err != nil {
				return err
			}

			for _, o := range owners {
				fmt.Printf("%s  %s  publish=%s\n",
					strconv.FormatInt(o.ID, 10), o.Email,
					strconv.FormatBool(o.CanPublish))
			}
			return nil
		},
	}

	cmd.AddCommand(addCmd, listCmd)
	return cmd
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage the mailbox secret in the system keyring",
	}

	setCmd := &cobra.Command{
		Use:   "set <value>",
		Short: "Store the mailbox password in the keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return credential.Set(credential.KeyMailserverPass, args[0])
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove the mailbox password from the keyring",
		RunE: func(_ *cobra.Command, _ []string) error {
			return credential.Delete(credential.KeyMailserverPass)
		},
	}

	cmd.AddCommand(setCmd, deleteCmd)
	return cmd
}
