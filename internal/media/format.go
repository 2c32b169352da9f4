// Package media turns original images into thumbnails: it looks up the
// output format from the key's extension, verifies the payload, normalizes
// color, resizes within a bound and encodes.
package media

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Codec names the encoder used for a thumbnail.
type Codec string

const (
	CodecJPEG Codec = "JPEG"
	CodecPNG  Codec = "PNG"
	CodecWEBP Codec = "WEBP"
	CodecGIF  Codec = "GIF"
	CodecBMP  Codec = "BMP"
	CodecTIFF Codec = "TIFF"
)

// ErrUnsupportedFormat is returned for extensions outside the whitelist.
var ErrUnsupportedFormat = errors.New("media: unsupported image format")

// Format is an entry of the extension whitelist.
type Format struct {
	Codec       Codec
	ContentType string
}

// Lossy reports whether the quality setting applies to the codec.
func (f Format) Lossy() bool {
	return f.Codec == CodecJPEG
}

// RequiresRGB reports whether images must be flattened to opaque RGB before encoding.
func (f Format) RequiresRGB() bool {
	return f.Codec == CodecJPEG
}

var supportedFormats = map[string]Format{
	"jpg":  {Codec: CodecJPEG, ContentType: "image/jpeg"},
	"jpeg": {Codec: CodecJPEG, ContentType: "image/jpeg"},
	"png":  {Codec: CodecPNG, ContentType: "image/png"},
	"webp": {Codec: CodecWEBP, ContentType: "image/webp"},
	"gif":  {Codec: CodecGIF, ContentType: "image/gif"},
	"bmp":  {Codec: CodecBMP, ContentType: "image/bmp"},
	"tiff": {Codec: CodecTIFF, ContentType: "image/tiff"},
	"tif":  {Codec: CodecTIFF, ContentType: "image/tiff"},
}

// Extension returns the lower-cased text after the last dot of key,
// or "" when key has no extension.
func Extension(key string) string {
	ext := path.Ext(key)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// FormatForKey looks up the output format implied by the key's extension.
func FormatForKey(key string) (Format, error) {
	ext := Extension(key)
	f, ok := supportedFormats[ext]
	if !ok {
		if ext == "" {
			return Format{}, fmt.Errorf("%w: %q has no extension", ErrUnsupportedFormat, key)
		}
		return Format{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	return f, nil
}
