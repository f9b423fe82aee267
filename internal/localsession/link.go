package localsession

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/llehouerou/boombox/internal/catalog"
	"github.com/llehouerou/boombox/internal/library"
)

// Playlist links.
const (
	linkPrefix   = "boombox:"
	linkPlaylist = linkPrefix + "playlist:"
	linkStarred  = linkPrefix + "starred"
	linkInbox    = linkPrefix + "inbox"
)

// Link returns the link naming p.
func Link(p library.Playlist) string {
	switch p.Kind {
	case library.KindStarred:
		return linkStarred
	case library.KindInbox:
		return linkInbox
	default:
		return linkPlaylist + url.PathEscape(p.Name)
	}
}

// parseLink returns the playlist kind a link refers to and, for user
// playlists, its name.
func parseLink(link string) (library.Kind, string, error) {
	switch {
	case link == linkStarred:
		return library.KindStarred, "", nil
	case link == linkInbox:
		return library.KindInbox, "", nil
	case strings.HasPrefix(link, linkPlaylist):
		name, err := url.PathUnescape(strings.TrimPrefix(link, linkPlaylist))
		if err != nil || name == "" {
			return "", "", fmt.Errorf("%w: %q", catalog.ErrInvalidLink, link)
		}
		return library.KindUser, name, nil
	default:
		return "", "", fmt.Errorf("%w: %q", catalog.ErrInvalidLink, link)
	}
}
