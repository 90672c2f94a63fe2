// Command glxyctl runs operator tasks against the GLXY database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"glxy/internal/config"
	"glxy/internal/db"
	"glxy/internal/logger"
	"glxy/internal/realtime"
	"glxy/internal/repository/postgres"
	"glxy/internal/retry"
	"glxy/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "glxyctl",
		Short:         "Operator tools for the GLXY Stardust ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg := config.Load()
			logger.Init(cfg.LogLevel, cfg.LogJSON)
		},
	}
	root.AddCommand(newMigrateCmd(), newReconcileCmd(), newGrantCmd(), newTokenCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	migrator := func() (db.Migrator, error) {
		return db.NewMigrator(config.Load().DatabaseURL, logger.With("component", "migrate"))
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := migrator()
			if err != nil {
				return err
			}
			return m.Up(cmd.Context())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := migrator()
			if err != nil {
				return err
			}
			return m.Status(cmd.Context())
		},
	})

	var target int64
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := migrator()
			if err != nil {
				return err
			}
			return m.Down(cmd.Context(), target)
		},
	}
	down.Flags().Int64Var(&target, "to", 0, "roll back down to this version instead")
	cmd.AddCommand(down)
	return cmd
}

func newReconcileCmd() *cobra.Command {
	var repair bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare every balance with its transaction log",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			log := logger.Get()
			events, closeEvents := profilePublisher(config.Load(), log)
			defer closeEvents()
			store := postgres.New(pool)
			reconciler := service.NewReconciler(store, service.NewAuditService(store), events, log)
			report, err := reconciler.Run(cmd.Context(), repair)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "rewrite drifted balances to the transaction sum")
	return cmd
}

func newGrantCmd() *cobra.Command {
	var description, operator string
	cmd := &cobra.Command{
		Use:   "grant <user_id> <amount>",
		Short: "Credit Stardust to a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || amount <= 0 {
				return fmt.Errorf("amount must be a positive integer, got %q", args[1])
			}

			pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			cfg := config.Load()
			log := logger.Get()
			store := postgres.New(pool)
			audit := service.NewAuditService(store)
			events, closeEvents := profilePublisher(cfg, log)
			defer closeEvents()
			ledger := service.NewLedger(store, storePolicy(cfg), events, log)
			admin := service.NewAdminService(store, ledger, audit, service.NewReconciler(store, audit, events, log))

			balance, err := admin.Grant(cmd.Context(), operator, args[0], amount, description)
			if err != nil {
				return err
			}
			fmt.Printf("%s now has %d stardust\n", args[0], balance)
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "transaction description (default \"Admin allocation\")")
	cmd.Flags().StringVar(&operator, "operator", "glxyctl", "recorded as the granting admin in the audit log")
	return cmd
}

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token <user_id>",
		Short: "Issue a session token for a user (testing and smoke runs)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			token, claims, err := service.NewSessionManager(cfg.JWTSecret, cfg.SessionTTL, nil).Issue(args[0])
			if err != nil {
				return err
			}
			fmt.Println(token)
			fmt.Fprintf(os.Stderr, "expires %s\n", claims.ExpiresAt.Time.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
}

func storePolicy(cfg *config.Config) retry.Policy {
	return retry.Policy{MaxAttempts: cfg.StoreRetries, BaseDelay: cfg.StoreRetryBackoff}
}

func connect(ctx context.Context) (*pgxpool.Pool, error) {
	cfg := config.Load()
	if cfg.StoreDriver != config.StoreDriverPostgres {
		return nil, fmt.Errorf("glxyctl needs STORE_DRIVER=postgres, got %q", cfg.StoreDriver)
	}
	return db.Connect(ctx, cfg.DatabaseURL, storePolicy(cfg))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// profilePublisher lets open profile streams see changes made from the CLI.
// Without Redis there is nobody to tell.
func profilePublisher(cfg *config.Config, log *slog.Logger) (service.ChangePublisher, func()) {
	if cfg.RedisAddr == "" {
		return nil, func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	return realtime.NewRedisBroker(client, log), func() { _ = client.Close() }
}
