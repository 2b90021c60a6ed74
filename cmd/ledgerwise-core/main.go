package main

// @title           Ledgerwise Core API
// @version         1.0
// @description     Finance assistant API. Answers questions grounded in each user's own products, sales and debts.

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Format: "Bearer {token}"

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "github.com/ledgerwise/ledgerwise-core/docs"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "ledgerwise-core",
		Short:         "Finance assistant backend",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional .env file loaded before the environment")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the record-change subscriber",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, envFile)
		},
	}

	var userID string
	reindexCmd := &cobra.Command{
		Use:   "reindex",
		Short: "Build one user's index and print its document count",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReindex(cmd.Context(), envFile, userID, cmd.OutOrStdout())
		},
	}
	reindexCmd.Flags().StringVar(&userID, "user", "", "User id to index")
	_ = reindexCmd.MarkFlagRequired("user")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ledgerwise-core %s\n", version)
		},
	}

	rootCmd.AddCommand(serveCmd, reindexCmd, versionCmd)
	rootCmd.SetContext(context.Background())
	return rootCmd
}
