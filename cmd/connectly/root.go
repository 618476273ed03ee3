package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Kunal-Gupta28/Connectly/internal/logging"
	"github.com/Kunal-Gupta28/Connectly/internal/ui"
	"github.com/Kunal-Gupta28/Connectly/internal/version"
)

var (
	flagServer   string
	flagDiscover bool
	flagName     string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagRelay    bool
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "connectly",
	Short: "Join Connectly meeting rooms from the terminal",
	Long: `Connectly is a terminal client for Connectly meetings. It creates or joins
a room on a signaling server, shows who is in the room, carries the room chat
and mic/camera status, and links directly to every participant over WebRTC.`,
	Version: version.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// The room view owns the terminal, so only errors are logged by default.
		logging.Init(flagLogLevel, slog.LevelError)
	},
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagServer, "server", "s", "", "signaling server URL (env CONNECTLY_SERVER)")
	pf.BoolVar(&flagDiscover, "discover", false, "find the signaling server on the local network")
	pf.StringVarP(&flagName, "name", "n", "", "name shown to other participants (env CONNECTLY_NAME)")
	pf.StringVar(&flagSTUN, "stun", "", "STUN server (env STUN_SERVER)")
	pf.StringVar(&flagTURN, "turn", "", "TURN server host (env TURN_SERVER)")
	pf.StringVar(&flagTURNUser, "turn-user", "", "TURN username (env TURN_USERNAME)")
	pf.StringVar(&flagTURNPass, "turn-pass", "", "TURN password (env TURN_PASSWORD)")
	pf.BoolVar(&flagRelay, "relay", false, "only use TURN relay for peer links")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
}
