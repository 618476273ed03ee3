package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
)

func TestEntryURL(t *testing.T) {
	entry := zeroconf.NewServiceEntry("office", ServiceType, "local.")
	entry.Port = 8080

	if _, ok := EntryURL(entry); ok {
		t.Error("entry without addresses produced a URL")
	}

	entry.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.20")}
	if got, ok := EntryURL(entry); !ok || got != "ws://192.168.1.20:8080/ws" {
		t.Errorf("EntryURL = %q, %v", got, ok)
	}

	entry.Text = []string{"path=/signal"}
	if got, _ := EntryURL(entry); got != "ws://192.168.1.20:8080/signal" {
		t.Errorf("EntryURL with path = %q", got)
	}

	entry.AddrIPv4 = nil
	entry.AddrIPv6 = []net.IP{net.ParseIP("fe80::1")}
	if got, _ := EntryURL(entry); got != "ws://[fe80::1]:8080/signal" {
		t.Errorf("EntryURL ipv6 = %q", got)
	}
}
