package thumbs

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
)

// ThumbRoot is the key prefix all thumbnails are stored under.
const ThumbRoot = "thumb"

// HashPath returns the two level directory a file name is stored in, e.g. "a/ab".
func HashPath(name string) string {
	sum := md5.Sum([]byte(name))
	h := hex.EncodeToString(sum[:])
	return h[0:1] + "/" + h[0:2]
}

// SourceKey is the object key of the original upload.
func SourceKey(name string) string {
	return path.Join(HashPath(name), name)
}

// ThumbDir is the key prefix holding every thumbnail of name.
func ThumbDir(name string) string {
	return path.Join(ThumbRoot, HashPath(name), name)
}

// ThumbName names a rendition of name at the given width. Formats that are not
// written back as-is get the output extension appended.
func ThumbName(name string, width int, outExt string) string {
	thumb := fmt.Sprintf("%dpx-%s", width, name)
	if outExt != "" && !strings.EqualFold(path.Ext(name), "."+outExt) {
		thumb += "." + outExt
	}
	return thumb
}

// ThumbKey is the object key of a rendition.
func ThumbKey(name string, width int, outExt string) string {
	return path.Join(ThumbDir(name), ThumbName(name, width, outExt))
}
