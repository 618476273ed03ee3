package dns

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestLookupLiteralIP(t *testing.T) {
	r := &Resolver{LocalTimeout: time.Millisecond}
	for _, host := range []string{"127.0.0.1", "::1"} {
		got, err := r.Lookup(context.Background(), host)
		if err != nil {
			t.Fatalf("Lookup(%q) error: %v", host, err)
		}
		if got != host {
			t.Errorf("Lookup(%q) = %q", host, got)
		}
	}
}

func TestLookupNoFallback(t *testing.T) {
	r := &Resolver{LocalTimeout: 200 * time.Millisecond}
	if _, err := r.Lookup(context.Background(), "does-not-exist.invalid"); err == nil {
		t.Fatal("expected error for .invalid host without public servers")
	}
}

func TestDialContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
	}()

	r := &Resolver{LocalTimeout: time.Second}
	conn, err := r.DialContext(context.Background(), "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("DialContext error: %v", err)
	}
	conn.Close()
}

func TestTrimBrackets(t *testing.T) {
	if got := trimBrackets("[2620:fe::fe]"); got != "2620:fe::fe" {
		t.Errorf("trimBrackets = %q", got)
	}
	if got := trimBrackets("9.9.9.9"); got != "9.9.9.9" {
		t.Errorf("trimBrackets = %q", got)
	}
}
