package commands

import (
	"github.com/spf13/cobra"
)

var (
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "incrypto",
	Short: "Crypto and forex trading platform backend",
	Long: `Backend for a simulated crypto and forex trading platform.

Features:
• Resilient market-data gateway with per-provider circuit breaking,
  token-bucket rate limiting and multi-provider fallback
• Synthetic OHLC chart generation when no real provider can serve
• Wallet, trade, KYC and notification services backed by MySQL
• Real-time notification and quote delivery over NATS and WebSocket
• Redis response caching and InfluxDB bar persistence`,
	Version: "1.0.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
