package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/llehouerou/boombox/internal/app"
	"github.com/llehouerou/boombox/internal/audioq"
	"github.com/llehouerou/boombox/internal/button"
	"github.com/llehouerou/boombox/internal/config"
	"github.com/llehouerou/boombox/internal/control"
	"github.com/llehouerou/boombox/internal/errmsg"
	"github.com/llehouerou/boombox/internal/library"
	"github.com/llehouerou/boombox/internal/localsession"
	"github.com/llehouerou/boombox/internal/logging"
	"github.com/llehouerou/boombox/internal/mpris"
	"github.com/llehouerou/boombox/internal/output"
	"github.com/llehouerou/boombox/internal/session"
	"github.com/llehouerou/boombox/internal/stderr"
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:           "boombox",
		Short:         "Headless shuffle player for a music library",
		Version:       appVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "additional config file")
	root.AddCommand(scanCmd(), playlistsCmd(), playlistCmd(), starCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func appVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" {
		return "unknown"
	}
	return bi.Main.Version
}

func instanceName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "boombox"
	}
	return "boombox on " + host
}

// setup loads the configuration, configures logging and opens the library.
func setup() (*config.Config, *library.Library, error) {
	var extra []string
	if configFile != "" {
		extra = append(extra, configFile)
	}
	cfg, err := config.Load(extra...)
	if err != nil {
		return nil, nil, errors.New(errmsg.Format(errmsg.OpInitialize, err))
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		return nil, nil, errors.New(errmsg.Format(errmsg.OpInitialize, err))
	}

	lib, err := library.Open(cfg.Database)
	if err != nil {
		return nil, nil, errors.New(errmsg.Format(errmsg.OpLibraryOpen, err))
	}
	return cfg, lib, nil
}

func run(ctx context.Context) error {
	cfg, lib, err := setup()
	if err != nil {
		return err
	}
	defer lib.Close()

	// ALSA reports underruns on fd 2
	if capture, err := stderr.Start(); err != nil {
		log.Warn().Err(err).Msg("Capturing stderr failed")
	} else {
		defer capture.Close()
		if err := logging.SetupWriter(capture.Original(), cfg.LogLevel, cfg.LogFormat); err != nil {
			return errors.New(errmsg.Format(errmsg.OpInitialize, err))
		}
	}

	audio := cfg.GetAudioConfig()
	queue := audioq.New()
	sink := output.NewBeepSink(output.BeepConfig{
		DeviceRate:      audio.DeviceRate,
		Buffer:          audio.Buffer(),
		ResampleQuality: audio.ResampleQuality,
	})
	defer sink.Close()
	driver := output.NewDriver(queue, sink, output.WithSlots(audio.PrebufferSlots))

	sessOpts := []localsession.Option{localsession.WithUser(cfg.User)}
	if cfg.WatchEnabled() && len(cfg.LibrarySources) > 0 {
		sessOpts = append(sessOpts, localsession.WithWatch(cfg.LibrarySources))
	}

	a, err := app.New(queue, driver, func(cb session.Callbacks) (session.Session, error) {
		return localsession.New(lib, cb, sessOpts...), nil
	}, app.Options{
		User:     cfg.User,
		Playlist: cfg.Playlist,
	})
	if err != nil {
		return errors.New(errmsg.Format(errmsg.OpInitialize, err))
	}
	defer a.Close()

	// Helpers outlive the main loop until it has logged out.
	auxCtx, cancelAux := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancelAux()

	commands := make(chan control.Command)

	wg.Go(func() {
		if err := driver.Run(auxCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Audio output stopped")
		}
	})

	if cfg.Control.Addr != "" {
		srv := control.NewServer(cfg.Control.Addr, commands)
		if err := srv.Listen(); err != nil {
			return errors.New(errmsg.Format(errmsg.OpInitialize, err))
		}
		wg.Go(func() {
			if err := srv.Serve(auxCtx); err != nil {
				log.Error().Err(err).Msg("Control server stopped")
			}
		})
		if cfg.AdvertiseEnabled() {
			wg.Go(func() {
				if err := control.Advertise(auxCtx, instanceName(), srv.Port()); err != nil {
					log.Warn().Err(err).Msg("mDNS announcement failed")
				}
			})
		}
	}

	if cfg.GPIOEnabled() {
		gpio := cfg.GetGPIOConfig()
		wg.Go(func() {
			err := button.Watch(auxCtx, button.Config{
				Sysfs:    gpio.Sysfs,
				Platform: gpio.Platform,
				Pin:      gpio.Pin,
			}, commands)
			if err != nil {
				log.Warn().Err(err).Msg("Button watcher stopped")
			}
		})
	}

	if cfg.MPRISEnabled() {
		adapter, err := mpris.New("boombox", a, commands)
		if err != nil {
			log.Warn().Err(err).Msg("MPRIS unavailable")
		} else {
			defer adapter.Close()
		}
	}

	if err := a.Login(); err != nil {
		return errors.New(errmsg.Format(errmsg.OpLogin, err))
	}
	return a.Run(ctx, commands)
}
