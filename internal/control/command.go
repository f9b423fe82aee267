// Package control turns control-plane input into abstract commands for the
// main loop.
package control

import (
	"errors"
	"fmt"
	"strings"
)

// LinkPrefix starts every playlist link.
const LinkPrefix = "boombox:"

// ErrUnsupported is returned by Parse for unknown commands.
var ErrUnsupported = errors.New("unsupported command")

// Kind identifies a command.
type Kind int

const (
	Select Kind = iota + 1
	Next
	Play
	Stop
	Logout
	Status
)

func (k Kind) String() string {
	switch k {
	case Select:
		return "select"
	case Next:
		return "next"
	case Play:
		return "play"
	case Stop:
		return "stop"
	case Logout:
		return "logout"
	case Status:
		return "status"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Source tells where a command came from.
type Source int

const (
	SourceNetwork Source = iota
	SourceButton
	SourceMPRIS
)

func (s Source) String() string {
	switch s {
	case SourceNetwork:
		return "network"
	case SourceButton:
		return "button"
	case SourceMPRIS:
		return "mpris"
	default:
		return "unknown"
	}
}

// Command is one request for the main loop.
type Command struct {
	Kind   Kind
	URI    string // playlist link, Select only
	Source Source

	// Reply receives the reply line, if non-nil. It must be buffered: the
	// main loop never blocks on it.
	Reply chan<- string
}

// Respond sends line to the command's reply channel, if any, without
// blocking.
func (c Command) Respond(line string) {
	if c.Reply == nil {
		return
	}
	select {
	case c.Reply <- line:
	default:
	}
}

// Parse reads a command from line. Only the first whitespace-separated
// token is significant.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, ErrUnsupported
	}
	tok := fields[0]

	if strings.HasPrefix(tok, LinkPrefix) {
		return Command{Kind: Select, URI: tok}, nil
	}

	switch tok {
	case "next", "0":
		return Command{Kind: Next}, nil
	case "play":
		return Command{Kind: Play}, nil
	case "stop":
		return Command{Kind: Stop}, nil
	case "logout":
		return Command{Kind: Logout}, nil
	case "status":
		return Command{Kind: Status}, nil
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnsupported, tok)
	}
}
