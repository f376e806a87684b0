package media

import (
	"bytes"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveThumbnailDownscalesToFit(t *testing.T) {
	p := NewProcessor(360, 480)
	thumb, err := p.DeriveThumbnail(encodeJPEG(t, 1200, 900))
	require.NoError(t, err)

	config, format, err := image.DecodeConfig(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.LessOrEqual(t, config.Width, 360)
	assert.LessOrEqual(t, config.Height, 480)
	// aspect preserved: 1200x900 -> 360x270
	assert.Equal(t, 360, config.Width)
	assert.Equal(t, 270, config.Height)
}

func TestDeriveThumbnailNeverUpscales(t *testing.T) {
	p := NewProcessor(360, 480)
	thumb, err := p.DeriveThumbnail(encodeJPEG(t, 100, 80))
	require.NoError(t, err)

	config, _, err := image.DecodeConfig(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, 100, config.Width)
	assert.Equal(t, 80, config.Height)
}

func TestDeriveThumbnailReencodesPNGAsJPEG(t *testing.T) {
	p := NewProcessor(360, 480)
	thumb, err := p.DeriveThumbnail(encodePNG(t, 500, 700))
	require.NoError(t, err)

	_, format, err := image.DecodeConfig(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestDeriveThumbnailRejectsGarbage(t *testing.T) {
	p := NewProcessor(360, 480)
	_, err := p.DeriveThumbnail([]byte("not an image"))
	assert.Error(t, err)
}
