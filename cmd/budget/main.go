package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/the-budget-must-balance/internal/cli"
	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/config"
)

var version = "dev"

func newRootCmd(a *app) *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "budget",
		Short: "💰 Local budget tracker",
		Long: `budget keeps generic, paycheck, and business budgets in a local database
and moves them between machines with JSON backups.

Every record belongs to an owner. Pass --owner, or a login token whose
subject names the owner.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return initConfig(cfgFile)
		},
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/budget/config.yaml)")
	flags.String("db", "", "database path (default: $HOME/.local/share/budget/budget.db)")
	flags.String("owner", "", "owner id the command acts for")
	flags.String("token", "", "login token; its subject is used as the owner")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")

	// Bind flags to viper
	_ = viper.BindPFlag("database.path", flags.Lookup("db"))
	_ = viper.BindPFlag("owner", flags.Lookup("owner"))
	_ = viper.BindPFlag("token", flags.Lookup("token"))
	_ = viper.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", flags.Lookup("log-format"))

	rootCmd.AddCommand(migrateCmd(a))
	rootCmd.AddCommand(categoriesCmd(a))
	rootCmd.AddCommand(budgetsCmd(a))
	rootCmd.AddCommand(paychecksCmd(a))
	rootCmd.AddCommand(backupCmd(a))
	rootCmd.AddCommand(snapshotCmd(a))
	rootCmd.AddCommand(resetCmd(a))
	rootCmd.AddCommand(browseCmd(a))
	rootCmd.AddCommand(whoamiCmd(a))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func main() {
	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received interrupt signal, shutting down gracefully...")
		cancel()
	}()

	a := newApp(os.Stdin)
	err := newRootCmd(a).ExecuteContext(ctx)
	a.close()
	cancel()

	if err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(cfgFile string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Environment variables: BUDGET_OWNER, BUDGET_TOKEN, BUDGET_DATABASE_PATH, ...
	viper.SetEnvPrefix("BUDGET")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := common.SetupLogger(viper.GetString("logging.level"), viper.GetString("logging.format")); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	return nil
}

// reportError prints the user-facing explanation of err.
func reportError(w io.Writer, err error) {
	explained := common.Explain(err)
	var userErr *common.UserError
	if errors.As(explained, &userErr) {
		slog.Debug("command failed", "error", err)
		fmt.Fprintln(w, cli.FormatError(userErr.UserMessage))
		return
	}
	common.LogError(err, "command failed", common.Fields{"command": os.Args[1:]})
	fmt.Fprintln(w, cli.FormatError(explained.Error()))
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "budget %s\n", version)
		},
	}
}
