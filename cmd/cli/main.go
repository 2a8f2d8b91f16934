package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/custodyledger/internal/adapter/http/dto"
	"github.com/iho/custodyledger/internal/infrastructure/config"
	"github.com/iho/custodyledger/internal/infrastructure/logger"
	"github.com/iho/custodyledger/internal/infrastructure/postgres"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type cliOptions struct {
	baseURL        string
	actor          string
	idempotencyKey string
	timeout        time.Duration
}

func (o *cliOptions) client() *apiClient {
	c := newAPIClient(o.baseURL, o.actor, o.timeout)
	c.idempotencyKey = o.idempotencyKey
	return c
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:           "custody-cli",
		Short:         "Custody ledger CLI tool",
		Long:          `A command line interface for the custody ledger API and its database migrations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the custody ledger API")
	rootCmd.PersistentFlags().StringVar(&opts.actor, "actor", os.Getenv("USER"), "Actor recorded in the audit log")
	rootCmd.PersistentFlags().StringVar(&opts.idempotencyKey, "idempotency-key", "", "Idempotency key sent with mutating requests")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(ledgerCmd(opts), custodyCmd(opts), transactionCmd(opts), migrateCmd())
	return rootCmd
}

func ledgerCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger-wide checks",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "consistency",
		Short: "Check ledger consistency",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result dto.ConsistencyResponse
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/api/v1/ledger/consistency", nil, &result); err != nil {
				return err
			}
			if !result.Consistent {
				return fmt.Errorf("consistency check FAILED: %s", result.Message)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Consistency check PASSED")
			return nil
		},
	})

	var refresh bool
	report := &cobra.Command{
		Use:   "report",
		Short: "Print the reconciliation report of every custody",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/ledger/reconciliation"
			if refresh {
				path += "?refresh=true"
			}

			var report map[string]any
			if err := opts.client().do(cmd.Context(), http.MethodGet, path, nil, &report); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	report.Flags().BoolVar(&refresh, "refresh", false, "Recompute instead of serving the cached report")
	cmd.AddCommand(report)

	return cmd
}

func custodyCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "custody",
		Short: "Custody operations",
	}

	var name, budget string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a custody with an initial budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			var custody dto.CustodyResponse
			req := dto.CreateCustodyRequest{Name: name, Budget: budget}
			if err := opts.client().do(cmd.Context(), http.MethodPost, "/api/v1/custodies", req, &custody); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), custody)
		},
	}
	create.Flags().StringVar(&name, "name", "", "Custody name")
	create.Flags().StringVar(&budget, "budget", "", "Initial budget")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("budget")

	var topUpAmount string
	topUp := &cobra.Command{
		Use:   "top-up <custody-id>",
		Short: "Raise the budget and remaining of a custody",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var custody dto.CustodyResponse
			req := dto.TopUpRequest{Amount: topUpAmount}
			if err := opts.client().do(cmd.Context(), http.MethodPost, "/api/v1/custodies/"+args[0]+"/top-ups", req, &custody); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), custody)
		},
	}
	topUp.Flags().StringVar(&topUpAmount, "amount", "", "Top-up amount")
	_ = topUp.MarkFlagRequired("amount")

	remaining := &cobra.Command{
		Use:   "remaining <custody-id>",
		Short: "Print the remaining balance of a custody",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result dto.RemainingResponse
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/api/v1/custodies/"+args[0]+"/remaining", nil, &result); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Remaining)
			return nil
		},
	}

	reconcile := &cobra.Command{
		Use:   "reconcile <custody-id>",
		Short: "Recompute a custody balance from its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result dto.ReconciliationResponse
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/api/v1/custodies/"+args[0]+"/reconciliation", nil, &result); err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.IsReconciled {
				return fmt.Errorf("custody %s is off by %s", result.CustodyID, result.Difference)
			}
			return nil
		},
	}

	status := func(use, action, short string) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <custody-id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var custody dto.CustodyResponse
				if err := opts.client().do(cmd.Context(), http.MethodPost, "/api/v1/custodies/"+args[0]+"/"+action, nil, &custody); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "custody %s is %s\n", custody.ID, custody.Status)
				return nil
			},
		}
	}

	cmd.AddCommand(create, topUp, remaining, reconcile,
		status("activate", "activate", "Allow new records on a custody"),
		status("deactivate", "deactivate", "Stop new records on a custody"),
	)
	return cmd
}

func transactionCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transaction",
		Aliases: []string{"tx"},
		Short:   "Transaction record operations",
	}

	var (
		kind, amount string
		details      dto.RecordDetailsRequest
	)
	addDetailFlags := func(c *cobra.Command) {
		c.Flags().StringVar(&details.Description, "description", "", "Record description")
		c.Flags().StringVar(&details.Responsible, "responsible", "", "Person responsible for the record")
		c.Flags().StringVar(&details.OccurredOn, "occurred-on", "", "Date of the record ("+dto.DateLayout+")")
	}

	apply := &cobra.Command{
		Use:   "apply <custody-id>",
		Short: "Apply a new record to a custody",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var record dto.TransactionResponse
			req := dto.ApplyTransactionRequest{Kind: kind, Amount: amount, RecordDetailsRequest: details}
			if err := opts.client().do(cmd.Context(), http.MethodPost, "/api/v1/custodies/"+args[0]+"/transactions", req, &record); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), record)
		},
	}
	apply.Flags().StringVar(&kind, "kind", "", "Record kind (advance, expense, bonus)")
	apply.Flags().StringVar(&amount, "amount", "", "Record amount")
	addDetailFlags(apply)
	_ = apply.MarkFlagRequired("kind")
	_ = apply.MarkFlagRequired("amount")

	var expectedVersion int64
	amend := &cobra.Command{
		Use:   "amend <transaction-id>",
		Short: "Change the amount of an applied record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dto.AmendTransactionRequest{Amount: amount, RecordDetailsRequest: details}
			if cmd.Flags().Changed("expected-version") {
				req.ExpectedVersion = &expectedVersion
			}
			var record dto.TransactionResponse
			if err := opts.client().do(cmd.Context(), http.MethodPatch, "/api/v1/transactions/"+args[0], req, &record); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), record)
		},
	}
	amend.Flags().StringVar(&amount, "amount", "", "New record amount")
	amend.Flags().Int64Var(&expectedVersion, "expected-version", 0, "Reject the amend unless the record is at this version")
	addDetailFlags(amend)
	_ = amend.MarkFlagRequired("amount")

	reverse := &cobra.Command{
		Use:   "reverse <transaction-id>",
		Short: "Reverse an applied record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().do(cmd.Context(), http.MethodDelete, "/api/v1/transactions/"+args[0], nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "transaction %s reversed\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(apply, amend, reverse)
	return cmd
}

// runMigrations is replaced in tests.
var runMigrations = func(up bool, cfg *config.Config) error {
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: "console", Service: "custody-cli"})
	if up {
		return postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, log)
	}
	return postgres.RunMigrationsDown(cfg.DatabaseURL, cfg.MigrationsPath, log)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	run := func(up bool) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if err := runMigrations(up, cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations complete")
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply all pending migrations", RunE: run(true)},
		&cobra.Command{Use: "down", Short: "Roll back the last migration", RunE: run(false)},
	)
	return cmd
}
