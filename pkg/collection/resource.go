package collection

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidResource is returned when a link or id cannot be parsed.
var ErrInvalidResource = errors.New("invalid resource reference")

// PlaylistTracks returns the resource path listing the tracks of a playlist.
func PlaylistTracks(playlistID string) string {
	return "playlists/" + playlistID + "/tracks"
}

// UserPlaylists returns the resource path listing the playlists of a user.
func UserPlaylists(userID string) string {
	return "users/" + userID + "/playlists"
}

// UserLibrary is the cache resource name of a user's merged track library.
func UserLibrary(userID string) string {
	return "users/" + userID + "/library"
}

// ParseResourceID extracts the bare identifier from a share link
// (https://open.spotify.com/playlist/<id>?si=...), a URI
// (spotify:playlist:<id>) or an already bare id.
func ParseResourceID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	ref = strings.TrimRight(ref, "/:")

	if i := strings.LastIndexAny(ref, "/:"); i >= 0 {
		ref = ref[i+1:]
	}
	if ref == "" {
		return "", fmt.Errorf("%w: empty identifier", ErrInvalidResource)
	}
	return ref, nil
}
