package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/llehouerou/boombox/internal/errmsg"
	"github.com/llehouerou/boombox/internal/library"
	"github.com/llehouerou/boombox/internal/localsession"
)

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan [dir...]",
		Short: "Add new music files to the library inbox",
		Long:  "Scan the configured library sources, or the given directories, and add unknown files to the Inbox playlist.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, lib, err := setup()
			if err != nil {
				return err
			}
			defer lib.Close()

			sources := cfg.LibrarySources
			if len(args) > 0 {
				sources = args
			}
			if len(sources) == 0 {
				return errors.New("no library sources configured")
			}

			out := cmd.OutOrStdout()
			stats, err := lib.Scan(cmd.Context(), sources, func(p library.ScanProgress) {
				if p.Phase == "processing" && p.Total > 0 && p.Current%100 == 0 {
					fmt.Fprintf(out, "%s/%s files read\n", humanize.Comma(int64(p.Current)), humanize.Comma(int64(p.Total)))
				}
			})
			if err != nil {
				return errors.New(errmsg.Format(errmsg.OpLibraryScan, err))
			}

			for _, path := range stats.Failed {
				fmt.Fprintf(cmd.ErrOrStderr(), "unreadable: %s\n", path)
			}
			fmt.Fprintf(out, "%s files found, %s already known, %s added to the inbox\n",
				humanize.Comma(int64(stats.Found)), humanize.Comma(int64(stats.Known)), humanize.Comma(int64(len(stats.Added))))
			return nil
		},
	}
}

func playlistsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "playlists",
		Short: "List playlists and their links",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, lib, err := setup()
			if err != nil {
				return err
			}
			defer lib.Close()

			pls, err := lib.Playlists()
			if err != nil {
				return errors.New(errmsg.Format(errmsg.OpPlaylistList, err))
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Name", "Kind", "Tracks", "Link"})
			for _, p := range pls {
				t.AppendRow(table.Row{p.Name, p.Kind, humanize.Comma(int64(p.Tracks)), localsession.Link(p.Playlist)})
			}
			t.Render()
			return nil
		},
	}
}

func playlistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playlist",
		Short: "Manage user playlists",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <name> <file...>",
		Short: "Append library tracks to a playlist, creating it if needed",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, lib, err := setup()
			if err != nil {
				return err
			}
			defer lib.Close()

			name := args[0]
			id, err := playlistID(lib, name)
			if err != nil {
				return errors.New(errmsg.FormatWith(errmsg.OpPlaylistCreate, name, err))
			}

			ids := make([]int64, 0, len(args)-1)
			for _, path := range args[1:] {
				t, err := trackByArg(lib, path)
				if err != nil {
					return err
				}
				ids = append(ids, t.ID)
			}
			if err := lib.AppendTracks(id, ids); err != nil {
				return errors.New(errmsg.FormatWith(errmsg.OpPlaylistCreate, name, err))
			}

			p, err := lib.PlaylistByID(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d tracks added to %s\n", len(ids), localsession.Link(*p))
			return nil
		},
	})
	return cmd
}

func playlistID(lib *library.Library, name string) (int64, error) {
	p, err := lib.PlaylistByName(name)
	if err == nil {
		return p.ID, nil
	}
	if !errors.Is(err, library.ErrNotFound) {
		return 0, err
	}
	return lib.CreatePlaylist(name)
}

func starCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "star <file...>",
		Short: "Add library tracks to the Starred playlist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, lib, err := setup()
			if err != nil {
				return err
			}
			defer lib.Close()

			for _, path := range args {
				t, err := trackByArg(lib, path)
				if err != nil {
					return err
				}
				added, err := lib.Star(t.ID)
				if err != nil {
					return errors.New(errmsg.FormatWith(errmsg.OpTrackStar, path, err))
				}
				if !added {
					fmt.Fprintf(cmd.OutOrStdout(), "already starred: %s\n", t.Path)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "starred: %s\n", t.Path)
			}
			return nil
		},
	}
}

// trackByArg returns the library track for a file, importing it into the
// Inbox when it is not known yet.
func trackByArg(lib *library.Library, arg string) (*library.Track, error) {
	path, err := filepath.Abs(arg)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	t, _, err := lib.Import(path)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	return t, nil
}
