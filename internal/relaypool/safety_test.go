package relaypool

import (
	"net"
	"testing"
)

func TestIsRelayURLSafe(t *testing.T) {
	cases := []struct {
		url  string
		want bool
	}{
		{"wss://relay.damus.io", true},
		{"ws://localhost:8080", true},
		{"ws://127.0.0.1:8080", true},
		{"http://relay.damus.io", false},
		{"ws://169.254.169.254", false},
		{"not a url", false},
	}
	for _, c := range cases {
		if got := isRelayURLSafe(c.url); got != c.want {
			t.Errorf("isRelayURLSafe(%q) = %v, want %v", c.url, got, c.want)
		}
	}
}

func TestIsRelayIPSafeBlocksPrivateRanges(t *testing.T) {
	unsafe := []string{"10.0.0.1", "172.16.0.1", "192.168.1.1", "169.254.1.1", "0.0.0.0", "169.254.169.254"}
	for _, s := range unsafe {
		if isRelayIPSafe(net.ParseIP(s)) {
			t.Errorf("isRelayIPSafe(%q) = true, want false", s)
		}
	}
	safe := []string{"127.0.0.1", "1.1.1.1", "93.184.216.34"}
	for _, s := range safe {
		if !isRelayIPSafe(net.ParseIP(s)) {
			t.Errorf("isRelayIPSafe(%q) = false, want true", s)
		}
	}
}
