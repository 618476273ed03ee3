package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Kunal-Gupta28/Connectly/internal/config"
	"github.com/Kunal-Gupta28/Connectly/internal/version"
)

var (
	cfgFile string
	v       = config.NewViper()
)

// rootCmd starts the signaling server when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "connectly-signal",
	Short: "Room presence and WebRTC signaling server for Connectly meetings",
	Long: `connectly-signal tracks which connections are in which meeting room,
relays SDP offers, answers and ICE candidates between participants, and
broadcasts presence, chat and status events to every room member.

Configuration is read from flags, CONNECTLY_* environment variables
(a .env file is loaded if present) and an optional config file.`,
	Version: version.Version,
	RunE:    runServe,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	f := rootCmd.Flags()
	f.String("addr", "", "listen address, e.g. :8080")
	f.StringSlice("allowed-origins", nil, "web app origins allowed to connect (default: any)")
	f.Int("send-queue", 0, "outbound frames buffered per connection")
	f.Int64("max-message", 0, "largest inbound frame in bytes")
	f.Float64("rate-limit", 0, "inbound frames per second per connection")
	f.Int("rate-burst", 0, "inbound burst per connection")
	f.Bool("mdns", false, "advertise the server on the local network")
	f.String("mdns-instance", "", "mDNS instance name")
	rootCmd.PersistentFlags().String("audit-driver", "", "room audit database driver: sqlite3 or mysql")
	rootCmd.PersistentFlags().String("audit-dsn", "", "room audit database DSN")
}
