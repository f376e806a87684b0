package media

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

const thumbnailJpegQuality = 80

// Processor handles image transformations, currently thumbnail derivation.
// It satisfies imagecache.ThumbnailDeriver.
type Processor struct {
	maxWidth  int
	maxHeight int
}

// NewProcessor creates a processor whose thumbnails fit within
// maxWidth x maxHeight logical pixels.
func NewProcessor(maxWidth, maxHeight int) *Processor {
	return &Processor{maxWidth: maxWidth, maxHeight: maxHeight}
}

// DeriveThumbnail decodes payload, downscales it to fit within the configured
// bounds preserving aspect ratio, and re-encodes it as JPEG. Images already
// within bounds are re-encoded at their original size; nothing is ever
// upscaled.
func (p *Processor) DeriveThumbnail(payload []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image for thumbnail: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > p.maxWidth || bounds.Dy() > p.maxHeight {
		img = imaging.Fit(img, p.maxWidth, p.maxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(thumbnailJpegQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
