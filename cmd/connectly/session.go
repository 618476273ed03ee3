package main

import (
	"context"
	"time"

	"github.com/Kunal-Gupta28/Connectly/internal/config"
	"github.com/Kunal-Gupta28/Connectly/internal/discovery"
	"github.com/Kunal-Gupta28/Connectly/internal/session"
	"github.com/Kunal-Gupta28/Connectly/internal/ui"
)

const discoverTimeout = 5 * time.Second

// loadConfig resolves the client configuration, browsing mDNS for the server
// when --discover is set and no --server was given.
func loadConfig(ctx context.Context) (*config.Client, error) {
	server := flagServer
	if server == "" && flagDiscover {
		sp := ui.NewSpinner("Looking for a server on the local network...")
		sp.Start()
		found, err := discovery.Find(ctx, "", discoverTimeout)
		if err != nil {
			sp.Error(err.Error())
			return nil, err
		}
		sp.Success("Found server at " + found)
		server = found
	}

	return config.LoadClient(config.Options{
		ServerURL:  server,
		Name:       flagName,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		ForceRelay: flagRelay,
	})
}

// connect dials the server behind a spinner.
func connect(ctx context.Context, cfg *config.Client) (*session.Session, error) {
	sp := ui.NewConnectionSpinner("Connecting to " + cfg.ServerURL + "...")
	sp.Start()
	s, err := session.Connect(ctx, cfg)
	sp.Stop()
	return s, err
}

// runRoom shows the room view until the user leaves or the server goes away.
func runRoom(s *session.Session, cfg *config.Client) error {
	defer s.Close()

	go s.Run()
	return ui.RunRoom(ui.NewRoomModel(cfg.Name, s, s.Updates()))
}
