package utils

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/mpapenbr/crewchief/log"
)

// WaitForTCP dials addr until it succeeds, timeout elapses or ctx is done.
func WaitForTCP(ctx context.Context, addr string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	log.Debug("wait for tcp connection",
		log.String("addr", addr),
		log.String("timeout", timeout.String()))
	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()

			log.Debug("tcp connection successful",
				log.String("addr", addr),
				log.String("duration", time.Since(start).String()))
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s could not be reached after %v", addr, timeout)
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// ExtractAddr returns host:port of a server URL like nats://host:4222.
// defaultPort is used if the URL has no port.
func ExtractAddr(rawURL, defaultPort string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	if port := u.Port(); port != "" {
		return net.JoinHostPort(u.Hostname(), port)
	}
	switch u.Scheme {
	case "tls", "https", "wss":
		if defaultPort == "" {
			defaultPort = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), defaultPort)
}
