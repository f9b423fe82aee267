// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Session operations
	OpLogin Op = "log in"

	// Playlist operations
	OpPlaylistSelect Op = "make playlist active"
	OpPlaylistCreate Op = "create playlist"
	OpPlaylistList   Op = "list playlists"

	// Library operations
	OpLibraryOpen Op = "open library"
	OpLibraryScan Op = "scan library"
	OpTrackStar   Op = "star track"

	// Initialization
	OpInitialize Op = "initialize application"
)

// Control-plane reply prefixes.
const (
	okPrefix  = "# OK, "
	errPrefix = "# ERR, "
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}

// OK formats a success reply line for the control connection.
func OK(msg string) string {
	return okPrefix + msg + "\n"
}

// Error formats a failure reply line carrying msg verbatim.
func Error(msg string) string {
	return errPrefix + msg + "\n"
}

// Reply formats the reply line for the outcome of op: OK with msg when err
// is nil, an error line naming op otherwise.
func Reply(op Op, msg string, err error) string {
	if err != nil {
		return Error(fmt.Sprintf("failed to %s: %v", op, err))
	}
	return OK(msg)
}
