package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"

	// Registers the WebP decoder with image.Decode; the other formats are
	// registered by imaging.
	_ "golang.org/x/image/webp"
)

const (
	// DefaultMaxSize bounds both thumbnail dimensions.
	DefaultMaxSize = 150
	// DefaultQuality is the encoder quality for lossy formats.
	DefaultQuality = 85
	// DefaultMaxPixels rejects images whose decoded size would exhaust memory.
	DefaultMaxPixels = 100_000_000
)

// Static errors for thumbnail generation.
var (
	// ErrEmptyImage is returned when the payload has no bytes.
	ErrEmptyImage = errors.New("media: image is empty")
	// ErrCorruptImage is returned when the payload does not verify as an image.
	ErrCorruptImage = errors.New("media: invalid image file")
	// ErrImageTooLarge is returned when the pixel count exceeds the limit.
	ErrImageTooLarge = errors.New("media: image dimensions too large")
)

// Dimensions is a width/height pair.
type Dimensions struct {
	Width  int
	Height int
}

// String formats the dimensions as WxH.
func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// Max returns the larger side.
func (d Dimensions) Max() int {
	return max(d.Width, d.Height)
}

// Thumbnail is an encoded thumbnail with the dimensions before and after resizing.
type Thumbnail struct {
	Data     []byte
	Format   Format
	Original Dimensions
	Size     Dimensions
}

// Thumbnailer builds thumbnails. It holds no per-call state and is safe for
// concurrent use.
type Thumbnailer struct {
	maxSize   int
	quality   int
	maxPixels int
}

// Option configures a Thumbnailer.
type Option func(*Thumbnailer)

// WithMaxSize sets the bound for both thumbnail dimensions.
func WithMaxSize(n int) Option {
	return func(t *Thumbnailer) {
		if n > 0 {
			t.maxSize = n
		}
	}
}

// WithQuality sets the encoder quality for lossy formats (1-100).
func WithQuality(q int) Option {
	return func(t *Thumbnailer) {
		if q >= 1 && q <= 100 {
			t.quality = q
		}
	}
}

// WithMaxPixels sets the largest accepted width*height.
func WithMaxPixels(n int) Option {
	return func(t *Thumbnailer) {
		if n > 0 {
			t.maxPixels = n
		}
	}
}

// NewThumbnailer creates a Thumbnailer with the default 150px bound and quality 85.
func NewThumbnailer(opts ...Option) *Thumbnailer {
	t := &Thumbnailer{
		maxSize:   DefaultMaxSize,
		quality:   DefaultQuality,
		maxPixels: DefaultMaxPixels,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Verify performs a structural check of the payload without decoding pixels
// and returns the image dimensions.
func (t *Thumbnailer) Verify(data []byte) (Dimensions, error) {
	if len(data) == 0 {
		return Dimensions{}, ErrEmptyImage
	}

	if mt := mimetype.Detect(data); !strings.HasPrefix(mt.String(), "image/") {
		return Dimensions{}, fmt.Errorf("%w: detected %s", ErrCorruptImage, mt.String())
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Dimensions{}, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Dimensions{}, fmt.Errorf("%w: zero dimensions", ErrCorruptImage)
	}
	if cfg.Width*cfg.Height > t.maxPixels {
		return Dimensions{}, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}
	return Dimensions{Width: cfg.Width, Height: cfg.Height}, nil
}

// Make verifies, decodes, resizes and encodes data into the given format.
// The output is deterministic for identical input.
func (t *Thumbnailer) Make(data []byte, format Format) (*Thumbnail, error) {
	if _, err := t.Verify(data); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	original := Dimensions{Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}

	if format.RequiresRGB() {
		img = flatten(img)
	}

	thumb := imaging.Fit(img, t.maxSize, t.maxSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := t.encode(&buf, thumb, format); err != nil {
		return nil, fmt.Errorf("encode %s thumbnail: %w", format.Codec, err)
	}

	return &Thumbnail{
		Data:     buf.Bytes(),
		Format:   format,
		Original: original,
		Size:     Dimensions{Width: thumb.Bounds().Dx(), Height: thumb.Bounds().Dy()},
	}, nil
}

func (t *Thumbnailer) encode(w io.Writer, img image.Image, format Format) error {
	switch format.Codec {
	case CodecJPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(t.quality))
	case CodecPNG:
		return imaging.Encode(w, img, imaging.PNG)
	case CodecGIF:
		return imaging.Encode(w, img, imaging.GIF)
	case CodecBMP:
		return imaging.Encode(w, img, imaging.BMP)
	case CodecTIFF:
		return imaging.Encode(w, img, imaging.TIFF)
	case CodecWEBP:
		return nativewebp.Encode(w, img, nil)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format.Codec)
	}
}

// flatten composites img over an opaque white canvas, turning any color model
// (CMYK, gray, paletted, alpha) into plain RGB.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	canvas := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}
