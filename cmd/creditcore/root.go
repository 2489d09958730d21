package main

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prepwise/creditcore/internal/config"
	"github.com/spf13/cobra"
)

var (
	configPath string
	envFile    string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.yaml (defaults to $"+config.ConfigPathEnv+" or "+config.DefaultConfigPath+")")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before the config")
}

var rootCmd = &cobra.Command{
	Use:           "creditcore",
	Short:         "Credit accounting core",
	Long:          `creditcore keeps prepaid credit balances, their ledger, pack purchases and referral rewards.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnvFile(envFile)
	},
}

// loadEnvFile loads path into the process environment. A missing file is not an error.
func loadEnvFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func appConfig() config.AppConfig {
	return config.AppConfig{ConfigPath: configPath}
}
