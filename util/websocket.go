package util

import (
	"strings"
)

// Turns a relay "host" string (bare hostname, or http/https/ws/wss URL) in to a websocket URL.
//
// Defaults to wss://, except for localhost and loopback addresses which get ws://.
func WebsocketURLForHost(host string) string {
	switch {
	case host == "":
		return ""
	case strings.HasPrefix(host, "wss://"), strings.HasPrefix(host, "ws://"):
		return host
	case strings.HasPrefix(host, "https://"):
		return "wss://" + strings.TrimPrefix(host, "https://")
	case strings.HasPrefix(host, "http://"):
		return "ws://" + strings.TrimPrefix(host, "http://")
	case strings.Contains(host, "://"):
		return host
	case strings.HasPrefix(host, "127.0.0."), strings.HasPrefix(host, "[::1]"):
		return "ws://" + host
	}
	if strings.SplitN(host, ":", 2)[0] == "localhost" {
		return "ws://" + host
	}
	return "wss://" + host
}
