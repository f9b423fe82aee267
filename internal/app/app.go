// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/llehouerou/boombox/internal/audioq"
	"github.com/llehouerou/boombox/internal/catalog"
	"github.com/llehouerou/boombox/internal/control"
	"github.com/llehouerou/boombox/internal/event"
	"github.com/llehouerou/boombox/internal/output"
	"github.com/llehouerou/boombox/internal/playback"
	"github.com/llehouerou/boombox/internal/player"
	"github.com/llehouerou/boombox/internal/session"
	"github.com/llehouerou/boombox/internal/wakeup"
)

// DefaultLogoutGrace is how long Run waits for the session to log out after
// a shutdown request before exiting anyway.
const DefaultLogoutGrace = 5 * time.Second

// OutputState reports the state of the audio output.
type OutputState interface {
	State() output.State
}

// SessionFactory creates the session reporting to cb.
type SessionFactory func(cb session.Callbacks) (session.Session, error)

// Options configures an App.
type Options struct {
	User        string // logs in as User, or relogs the remembered user when empty
	Playlist    string // link activated instead of Starred after login
	LogoutGrace time.Duration
	Rand        *rand.Rand // shuffle source, time-seeded when nil
}

// App is the application context. It owns the scheduler, the playback
// state and the session, and runs the main loop.
//
// Everything but Status, CurrentTrack, HasPlaylist and Playing belongs to
// the goroutine running Run.
type App struct {
	opts   Options
	wake   *wakeup.Channel
	events *event.Scheduler
	queue  *audioq.Queue
	out    OutputState
	player *player.Player
	ctrl   *playback.Controller
	sess   session.Session
	log    zerolog.Logger

	inbox            *catalog.Ref[catalog.Playlist]
	starred          *catalog.Ref[catalog.Playlist]
	initialActivated bool
	skipped          int // consecutive unplayable tracks

	status atomic.Pointer[string]
}

// New creates the application around queue, the buffer drained by the
// audio output, and opens the session. out may be nil.
func New(queue *audioq.Queue, out OutputState, newSession SessionFactory, opts Options) (*App, error) {
	if opts.LogoutGrace <= 0 {
		opts.LogoutGrace = DefaultLogoutGrace
	}

	wake := wakeup.New()
	a := &App{
		opts:   opts,
		wake:   wake,
		events: event.NewScheduler(wake),
		queue:  queue,
		out:    out,
		log:    log.With().Str("component", "app").Logger(),
	}
	a.player = player.New(queue, a.events, a)

	sess, err := newSession(a.callbacks())
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	a.sess = sess
	a.player.Bind(sess)

	var ctrlOpts []playback.Option
	if opts.Rand != nil {
		ctrlOpts = append(ctrlOpts, playback.WithRand(opts.Rand))
	}
	a.ctrl = playback.NewController(a.events, sess, ctrlOpts...)

	a.updateStatus()
	return a, nil
}

// callbacks routes session callbacks to the player and the scheduler.
func (a *App) callbacks() session.Callbacks {
	return session.Callbacks{
		LoggedIn: func(err error) {
			if err != nil {
				a.log.Error().Err(err).Msg("Login failed")
				return
			}
			a.log.Info().Str("user", a.sess.RememberedUser()).Msg("Successfully logged in")
			a.events.Post(event.LoggedIn)
		},
		LoggedOut: func() {
			a.log.Info().Msg("Logged out")
			a.events.Post(event.DoExit)
		},
		MetadataUpdated: func() {
			a.log.Debug().Msg("New metadata available")
			a.events.Post(event.DoMetadata)
		},
		ConnectionState: func(st session.ConnectionState) {
			a.log.Info().Stringer("state", st).Msg("Connection state changed")
		},
		MessageToUser: func(msg string) {
			a.log.Info().Str("message", msg).Msg("Message to user")
		},
		NotifyMainThread: a.wake.Signal,
		MusicDelivery: func(format audioq.Format, samples []int16, frames int) int {
			return a.player.DeliverFrames(format, samples, frames)
		},
		BufferStats: func() audioq.Stats {
			return a.player.BufferStats()
		},
		StartPlayback: func() { a.player.StartPlayback() },
		StopPlayback:  func() { a.player.StopPlayback() },
		PlayTokenLost: func() { a.player.PlayTokenLost() },
		EndOfTrack:    func() { a.player.EndOfTrack() },
		TracksChanged: func(pl catalog.Playlist) {
			a.ctrl.TracksChanged(pl)
		},
	}
}

// Login starts logging in. The outcome arrives through the LoggedIn
// callback while Run processes session events.
func (a *App) Login() error {
	if a.opts.User != "" {
		a.log.Debug().Str("user", a.opts.User).Msg("Logging in with configured user")
		return a.sess.Login(a.opts.User, "")
	}
	if user := a.sess.RememberedUser(); user != "" {
		a.log.Debug().Str("user", user).Msg("Logging in with stored credentials")
	}
	if err := a.sess.Relogin(); err != nil {
		if errors.Is(err, session.ErrNoCredentials) {
			return fmt.Errorf("%w: set a user in the configuration", err)
		}
		return err
	}
	return nil
}

// Run is the main loop. It returns once the session has logged out, or
// when the logout grace period expires after ctx is done.
func (a *App) Run(ctx context.Context, commands <-chan control.Command) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	done := ctx.Done()
	var grace <-chan time.Time

	for {
		if a.events.Drain(a.handle) {
			break
		}
		a.updateStatus()

		timer.Reset(a.sess.ProcessEvents())

		select {
		case <-done:
			a.log.Info().Msg("Shutdown requested, logging out")
			a.events.Post(event.DoLogout)
			done = nil
			grace = time.After(a.opts.LogoutGrace)
		case <-grace:
			a.log.Warn().Msg("Session did not log out in time, exiting")
			a.events.Post(event.DoExit)
		case cmd := <-commands:
			a.handleCommand(cmd)
		case <-a.wake.C():
		case <-timer.C:
		}
	}

	a.log.Info().Msg("Main loop finished")
	return nil
}

// Close releases the playback state and the session.
func (a *App) Close() error {
	a.ctrl.Release()
	a.ctrl.SetReserved()
	a.inbox.Release()
	a.starred.Release()
	a.inbox, a.starred = nil, nil
	return a.sess.Close()
}

// Queue returns the frame queue.
func (a *App) Queue() *audioq.Queue {
	return a.queue
}

// CurrentTrack returns the selected track. Safe from any goroutine.
func (a *App) CurrentTrack() catalog.Track {
	return a.ctrl.CurrentTrack()
}

// HasPlaylist reports whether a playlist is active. Safe from any
// goroutine.
func (a *App) HasPlaylist() bool {
	return a.ctrl.ActivePlaylist() != nil
}

// Playing reports whether audio is being output. Safe from any goroutine.
func (a *App) Playing() bool {
	return a.out != nil && a.out.State() == output.StatePlaying
}

// State summarises playback: stopped without a current track, playing
// while the output is, loading otherwise. Safe from any goroutine.
func (a *App) State() playback.State {
	switch {
	case a.ctrl.CurrentTrack() == nil:
		return playback.StateStopped
	case a.Playing():
		return playback.StatePlaying
	default:
		return playback.StateLoading
	}
}

// Status returns the last status report. Safe from any goroutine.
func (a *App) Status() string {
	if s := a.status.Load(); s != nil {
		return *s
	}
	return ""
}
