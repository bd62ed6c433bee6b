package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "caoctl",
	Short: "Operator CLI for the dealership inventory and order engine",
	Long: `caoctl drives the same queue processor, ingest pipeline, and store
operations the HTTP API exposes, from a terminal: running queued orders,
importing inventory CSVs, flipping a manifest's active status, and
exporting a dealership's VIN log.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initConfig()
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./caoctl.yml)")
	rootCmd.PersistentFlags().String("database-url", "", "Postgres connection string (overrides DATABASE_URL)")
	rootCmd.PersistentFlags().String("qr-output-root", "./output", "root directory for emitted CSV/QR artifacts")
	_ = viper.BindPFlag("database_url", rootCmd.PersistentFlags().Lookup("database-url"))
	_ = viper.BindPFlag("qr_output_root", rootCmd.PersistentFlags().Lookup("qr-output-root"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("caoctl")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
