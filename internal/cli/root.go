// Package cli provides the dqcheck command-line interface.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/csvquality/internal/config"
	"github.com/JonMunkholm/csvquality/internal/core"
	"github.com/JonMunkholm/csvquality/internal/logging"
	"github.com/spf13/cobra"
)

// Version information (set at build time).
var Version = "0.1.0"

// configKey is used to store config in context.
type configKey struct{}

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "dqcheck",
		Short: "Data-quality checks for CSV files",
		Long: `dqcheck registers CSV files as datasets, analyzes them for missing values,
duplicate rows and per-column statistics, and stores the results and a
human-readable report in PostgreSQL or SQLite.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			// Logs go to stderr so stdout stays parseable.
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format))
			slog.Debug("configuration loaded", "config", cfg.String())

			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./"+config.DefaultConfigFile+")")
	flags.String("db-driver", "", "storage driver (postgres|sqlite)")
	flags.String("database-url", "", "PostgreSQL connection string")
	flags.String("sqlite-path", "", "SQLite database file")
	flags.String("data-dir", "", "directory registered CSV files are copied to")
	flags.String("log-level", "", "log level (debug|info|warn|error)")
	flags.String("log-format", "", "log format (text|json)")
	flags.StringP("output", "o", formatTable, "output format (table|json|yaml)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return outputFormats, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("db-driver", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.DriverPostgres, config.DriverSQLite}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newRegisterCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newDatasetsCmd())

	return rootCmd
}

// Execute runs the root command. Known failures are printed as user-facing
// messages with a support code; the technical error is logged.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ue := core.NewUserError(err)
		slog.Debug("command failed", "error", ue.Technical, "code", ue.User.Code)
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", ue.Display())
		return err
	}
	return nil
}

// errorMessage prefers the mapped message and falls back to the raw error
// for usage and configuration mistakes.
func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return core.NewUserError(err).Display()
}

// getConfig retrieves the config stored by the root command.
func getConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	return nil
}
