package cmd

import (
	"fmt"
	"os"
	"strings"

	"transaction-automation-service/cmd/automator/config"
	"transaction-automation-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"

	// appConfig is loaded before every command runs
	appConfig = config.Default()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "automator",
	Short: "Transaction message parsing and recurring payment analysis",
	Long: `Automator turns bank and wallet notification messages into structured
transactions and finds recurring payments in a transaction history.

Messages in English, Amharic or a mix of both are recognised for the
supported Ethiopian banks and mobile wallets. Recurring payments with a
high enough confidence are promoted to subscriptions.

Examples:
  automator parse --text "Dear Customer, your account has been debited with ETB 500.00"
  cat messages.txt | automator parse --source clipboard --output-format json
  automator analyze --history transactions.csv
  automator templates
  automator version`,
	Version:           getVersionString(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadAppConfig,
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
	rootCmd.PersistentFlags().String("templates", "", "template bank YAML file (default: embedded templates)")
	rootCmd.PersistentFlags().String("log-level", string(logger.InfoLevel), "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", string(logger.TextFormat), "log format: text, json")
	rootCmd.PersistentFlags().StringP("output-format", "f", "console", "output format: console, json, csv")
	rootCmd.PersistentFlags().StringP("output-file", "o", "", "output file path (default: stdout)")

	// Bind flags to viper
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("templates", rootCmd.PersistentFlags().Lookup("templates"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("report.format", rootCmd.PersistentFlags().Lookup("output-format"))
	viper.BindPFlag("output-file", rootCmd.PersistentFlags().Lookup("output-file"))
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

	// AUTOMATOR_DETECTION_MIN_OCCURRENCES overrides detection.min_occurrences
	viper.SetEnvPrefix("AUTOMATOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// loadAppConfig decodes the merged configuration and installs the global logger
func loadAppConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	if viper.GetBool("verbose") {
		cfg.Log.Level = logger.DebugLevel
	}

	log, err := logger.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	logger.SetGlobalLogger(log)

	appConfig = cfg
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
