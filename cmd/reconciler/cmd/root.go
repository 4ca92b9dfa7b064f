package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ledger-reconciliation-service/cmd/reconciler/config"
	"ledger-reconciliation-service/pkg/logger"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Bank and sales ledger reconciliation tool",
	Long: `Reconciler pairs the records of a bank statement with the records of a
sales ledger. Columns are detected from the headers, values are normalized,
and records are matched exactly by reference, amount and date, then fuzzily
within configurable tolerances.

Examples:
  reconciler reconcile --bank-file bank.xlsx --sales-file sales.csv
  reconciler reconcile --bank-file bank.csv --sales-file sales.csv --output-format csv --export-type unmatched_bank
  reconciler detect --file statement.xls
  reconciler serve --addr :8080 --session-store sqlite --session-db sessions.db`,
	Version:       getVersionString(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogger()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text, json")

	// Matching flags are shared by reconcile and serve
	rootCmd.PersistentFlags().Float64P("amount-tolerance", "a", 1.0, "largest amount difference that still scores, in currency units")
	rootCmd.PersistentFlags().IntP("date-tolerance", "d", 3, "largest date difference that still scores, in days")
	rootCmd.PersistentFlags().String("sign-policy", "preserve", "amount sign handling: preserve, absolute")
	rootCmd.PersistentFlags().Bool("parallel-scoring", false, "score fuzzy candidates concurrently")
	rootCmd.PersistentFlags().Int("sample-rows", 5, "data rows inspected when detecting columns")
	rootCmd.PersistentFlags().Int("max-upload-mb", 20, "largest accepted input file in MiB (0 disables the limit)")

	// Bind flags to viper
	for _, name := range []string{
		"verbose", "log-level", "log-format",
		"amount-tolerance", "date-tolerance", "sign-policy",
		"parallel-scoring", "sample-rows", "max-upload-mb",
	} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)

		// If a config file is specified, read it in.
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(4)
		}

		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}

	// Read environment variables that match, e.g. RECONCILER_DATE_TOLERANCE
	viper.SetEnvPrefix("RECONCILER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func setupLogger() error {
	logConfig, err := config.CreateLoggerConfig(
		viper.GetString("log-level"),
		viper.GetString("log-format"),
		viper.GetBool("verbose"),
	)
	if err != nil {
		return err
	}

	log, err := logger.NewLogger(logConfig)
	if err != nil {
		return err
	}
	logger.SetGlobalLogger(log)
	return nil
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
