package control

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/llehouerou/boombox/internal/errmsg"
)

const writeTimeout = 5 * time.Second

// Server accepts control connections over TCP. Every line read from a
// client is parsed and forwarded to the main loop; the reply is written
// back on the same connection.
type Server struct {
	addr string
	out  chan<- Command
	log  zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	clients  map[net.Conn]struct{}
	wg       sync.WaitGroup
}

// NewServer creates a server listening on addr and sending commands to out.
func NewServer(addr string, out chan<- Command) *Server {
	return &Server{
		addr:    addr,
		out:     out,
		log:     log.With().Str("component", "control").Logger(),
		clients: make(map[net.Conn]struct{}),
	}
}

// Listen opens the listening socket. Serve calls it when needed.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.log.Info().Str("addr", ln.Addr().String()).Msg("Listening for control connections")
	return nil
}

// Addr returns the listening address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is done, then closes every client
// and waits for their goroutines.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		ln.Close()
		s.mu.Lock()
		for c := range s.clients {
			c.Close()
		}
		s.mu.Unlock()
	})
	defer stop()

	var err error
	for {
		conn, aerr := ln.Accept()
		if aerr != nil {
			if ctx.Err() == nil && !errors.Is(aerr, net.ErrClosed) {
				err = fmt.Errorf("accept: %w", aerr)
			}
			break
		}
		s.track(conn, true)
		s.wg.Go(func() {
			defer s.track(conn, false)
			s.handle(ctx, conn)
		})
	}

	s.wg.Wait()
	return err
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.clients[conn] = struct{}{}
		return
	}
	delete(s.clients, conn)
	conn.Close()
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	logger := s.log.With().Str("client", conn.RemoteAddr().String()).Logger()
	logger.Info().Msg("Accepted client")

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		logger.Debug().Str("line", line).Msg("Received command")

		reply, ok := s.dispatch(ctx, line)
		if !ok {
			return
		}
		if err := writeLine(conn, reply); err != nil {
			logger.Debug().Err(err).Msg("Writing reply failed")
			return
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		logger.Debug().Err(err).Msg("Reading from client failed")
	}
	logger.Debug().Msg("Client disconnected")
}

// dispatch forwards line to the main loop and waits for the reply. It
// returns false when ctx ends first.
func (s *Server) dispatch(ctx context.Context, line string) (string, bool) {
	cmd, err := Parse(line)
	if err != nil {
		s.log.Warn().Str("line", line).Msg("Unsupported command")
		return errmsg.Error(ErrUnsupported.Error()), true
	}

	reply := make(chan string, 1)
	cmd.Source = SourceNetwork
	cmd.Reply = reply

	select {
	case s.out <- cmd:
	case <-ctx.Done():
		return "", false
	}

	select {
	case r := <-reply:
		return r, true
	case <-ctx.Done():
		return "", false
	}
}

func writeLine(conn net.Conn, line string) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	_, err := io.WriteString(conn, line)
	return err
}
