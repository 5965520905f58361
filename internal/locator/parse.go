package locator

import (
	"strconv"
	"strings"
)

const itemCountMarker = "items added to shared album"

// ParseItemCount extracts the leading integer token from a localized
// item-counter string such as "1,234 items added to shared album".
// Anything unparseable counts as zero rather than an error, matching the
// behavior for albums that expose no counter at all.
func ParseItemCount(content string) int {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(fields[0], ",", ""))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// chromePrefixes name the grid links that are navigation chrome rather
// than media items.
var chromePrefixes = []string{"Back", "Goog", "Play"}

// EligibleItemName reports whether a grid link's accessible name denotes
// a media item.
func EligibleItemName(name string) bool {
	if name == "" {
		return false
	}
	for _, p := range chromePrefixes {
		if strings.HasPrefix(name, p) {
			return false
		}
	}
	return true
}

// TrimAlbumTitle strips the host's page-title suffix from an album title.
func TrimAlbumTitle(title string) string {
	return strings.TrimSuffix(title, " - Google Photos")
}
