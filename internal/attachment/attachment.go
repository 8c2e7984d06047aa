// Package attachment turns receipt images into the compact form stored on
// expense items.
package attachment

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // decoder registration
	"io"

	"github.com/disintegration/imaging"

	"github.com/Veraticus/the-budget-must-balance/internal/model"
)

// Defaults used when no explicit options are configured.
const (
	DefaultMaxWidth = 1024
	DefaultQuality  = 85
	MaxInputSize    = 10 * 1024 * 1024
	mimeJPEG        = "image/jpeg"
)

// Attachment errors.
var (
	ErrImageTooLarge    = errors.New("image too large, maximum size is 10MB")
	ErrInvalidImageData = errors.New("invalid image data")
)

// Options controls how images are compressed.
type Options struct {
	MaxWidth int
	Quality  int
}

// DefaultOptions returns the default compression settings.
func DefaultOptions() Options {
	return Options{MaxWidth: DefaultMaxWidth, Quality: DefaultQuality}
}

// Compressor downsizes and re-encodes images.
type Compressor struct {
	opts Options
}

// NewCompressor creates a compressor. Zero or out-of-range option values fall
// back to the defaults.
func NewCompressor(opts Options) *Compressor {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = DefaultMaxWidth
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}
	return &Compressor{opts: opts}
}

// Compress reads an image, shrinks it to the configured width keeping its
// aspect ratio, and returns it as base64 JPEG.
func (c *Compressor) Compress(r io.Reader) (model.Attachment, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxInputSize+1))
	if err != nil {
		return model.Attachment{}, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > MaxInputSize {
		return model.Attachment{}, ErrImageTooLarge
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return model.Attachment{}, fmt.Errorf("%w: %w", ErrInvalidImageData, err)
	}

	if img.Bounds().Dx() > c.opts.MaxWidth {
		img = imaging.Resize(img, c.opts.MaxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.opts.Quality}); err != nil {
		return model.Attachment{}, fmt.Errorf("failed to encode image: %w", err)
	}

	return model.Attachment{
		Data:     base64.StdEncoding.EncodeToString(buf.Bytes()),
		FileType: mimeJPEG,
	}, nil
}

// Decode returns the raw bytes of a stored attachment.
func Decode(att model.Attachment) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(att.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImageData, err)
	}
	return data, nil
}
