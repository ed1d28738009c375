package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	consts "github.com/khanhnv2901/urlrisk/internal/shared/constants"
)

var cfgFile string
var logger *zap.Logger

var rootCmd = &cobra.Command{
	Use:   "urlrisk",
	Short: "Analyze URLs for phishing and trustworthiness risk",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// init config
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			viper.AddConfigPath("$HOME")
			viper.SetConfigName(".urlrisk")
			viper.SetConfigType("yaml")
		}

		viper.SetDefault("request_timeout", consts.DefaultCheckTimeout)
		viper.SetDefault("cache_ttl", consts.DefaultCacheTTL)
		viper.SetDefault("ml_model_path", "")

		_ = viper.ReadInConfig()

		// init logger
		l, err := zap.NewProduction()
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		logger = l

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// configuredTimeout resolves the per-checker timeout from config.
func configuredTimeout() time.Duration {
	if d := viper.GetDuration("request_timeout"); d > 0 {
		return d
	}
	return consts.DefaultCheckTimeout
}

// configuredCacheTTL resolves the verdict cache TTL from config.
func configuredCacheTTL() time.Duration {
	if d := viper.GetDuration("cache_ttl"); d > 0 {
		return d
	}
	return consts.DefaultCacheTTL
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.urlrisk.yaml)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(versionCmd)
}
