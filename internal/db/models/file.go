package models

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MediaTypeBitmap is the media type of raster images that can be scaled.
const MediaTypeBitmap = "BITMAP"

// File is a media file record as stored in the image table
type File struct {
	Name      string `json:"name" db:"img_name"`
	Size      int64  `json:"size" db:"img_size"`
	Width     int    `json:"width" db:"img_width"`
	Height    int    `json:"height" db:"img_height"`
	MediaType string `json:"media_type" db:"img_media_type"`
	MajorMIME string `json:"major_mime" db:"img_major_mime"`
	MinorMIME string `json:"minor_mime" db:"img_minor_mime"`
}

// MIME returns the full mime type, e.g. "image/png"
func (f *File) MIME() string {
	if f.MajorMIME == "" {
		return ""
	}
	return f.MajorMIME + "/" + f.MinorMIME
}

// Area is the pixel count of the source image
func (f *File) Area() int64 {
	return int64(f.Width) * int64(f.Height)
}

var namespacePrefixes = []string{"file:", "image:"}

// NormalizeName turns a user supplied title into the stored file name:
// the namespace prefix is dropped, spaces become underscores and the first
// letter is upper-cased.
func NormalizeName(title string) string {
	name := strings.TrimSpace(title)
	for _, prefix := range namespacePrefixes {
		if len(name) > len(prefix) && strings.EqualFold(name[:len(prefix)], prefix) {
			name = strings.TrimSpace(name[len(prefix):])
			break
		}
	}
	name = strings.Join(strings.Fields(name), "_")

	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}
