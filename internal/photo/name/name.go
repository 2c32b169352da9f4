// Package name derives collision-resistant object keys for uploads.
package name

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the second-resolution, lexically sortable timestamp
// embedded in every unique file name.
const TimestampLayout = "20060102150405"

// idLength is the number of UUID characters kept as the disambiguator.
const idLength = 8

// Unique creates a unique file name from the client's original name.
// Format: <base>-<timestamp>-<id><ext>
// Example: vacation-20240815143022-1b9d6bcd.png
//
// Directory components of the original are dropped; the extension is kept
// exactly as the client sent it.
func Unique(original string, now time.Time) string {
	base := path.Base(strings.ReplaceAll(original, "\\", "/"))
	if base == "/" || base == "." {
		base = ""
	}
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		stem = "upload"
	}

	id := uuid.NewString()[:idLength]
	return stem + "-" + now.UTC().Format(TimestampLayout) + "-" + id + ext
}
