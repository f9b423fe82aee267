package control

import (
	"context"
	"fmt"
	"net"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog/log"
)

// ServiceType is the DNS-SD type the control server is announced under.
const ServiceType = "_boombox._tcp"

// txtRecords describe the line protocol to clients browsing for players.
func txtRecords() []string {
	return []string{
		"proto=line",
		"select=" + LinkPrefix,
		"commands=next,play,stop,status,logout",
	}
}

// Advertise announces a control server listening on port as instance on
// the local network, and withdraws the announcement once ctx is done.
func Advertise(ctx context.Context, instance string, port int) error {
	if port <= 0 {
		return fmt.Errorf("advertise %s: invalid port %d", instance, port)
	}
	srv, err := zeroconf.Register(instance, ServiceType, "local.", port, txtRecords(), nil)
	if err != nil {
		return fmt.Errorf("advertise %s: %w", instance, err)
	}
	log.Info().Str("component", "control").Str("instance", instance).Int("port", port).Msg("Announced control server")

	<-ctx.Done()
	srv.Shutdown()
	return nil
}

// Port returns the TCP port the server listens on, or 0 before Listen.
func (s *Server) Port() int {
	if a, ok := s.Addr().(*net.TCPAddr); ok {
		return a.Port
	}
	return 0
}
