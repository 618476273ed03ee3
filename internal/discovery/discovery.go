// Package discovery advertises a signaling server on the local network over
// mDNS and lets clients find it without a configured URL.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the mDNS service type for Connectly signaling servers
const ServiceType = "_connectly._tcp"

const pathKey = "path="

// Advertise announces the server on the local network. It returns a shutdown
// function that should be called when advertising is no longer needed.
func Advertise(instance string, port int, path string) (func(), error) {
	if instance == "" {
		instance = "connectly"
	}
	server, err := zeroconf.Register(
		instance,
		ServiceType,
		"local.",
		port,
		[]string{pathKey + path},
		nil, // all interfaces
	)
	if err != nil {
		return nil, fmt.Errorf("advertise %s: %w", ServiceType, err)
	}
	return server.Shutdown, nil
}

// Find browses for a server and returns its websocket URL. An empty instance
// accepts the first server found.
func Find(ctx context.Context, instance string, timeout time.Duration) (string, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, ServiceType, "local.", entries); err != nil {
		return "", err
	}

	for {
		select {
		case <-ctx.Done():
			return "", errors.New("no signaling server found on the local network")
		case entry := <-entries:
			if entry == nil {
				continue
			}
			if instance != "" && entry.Instance != instance {
				continue
			}
			if u, ok := EntryURL(entry); ok {
				return u, nil
			}
		}
	}
}

// EntryURL builds ws://ip:port/path from a resolved entry.
func EntryURL(entry *zeroconf.ServiceEntry) (string, bool) {
	var ip net.IP
	switch {
	case len(entry.AddrIPv4) > 0:
		ip = entry.AddrIPv4[0]
	case len(entry.AddrIPv6) > 0:
		ip = entry.AddrIPv6[0]
	default:
		return "", false
	}

	path := "/ws"
	for _, txt := range entry.Text {
		if strings.HasPrefix(txt, pathKey) {
			if p := strings.TrimPrefix(txt, pathKey); p != "" {
				path = p
			}
		}
	}
	host := net.JoinHostPort(ip.String(), strconv.Itoa(entry.Port))
	return "ws://" + host + path, true
}
