package media

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestValidateAcceptsGoodImages(t *testing.T) {
	policy := UploadPolicy{MaxBytes: 1 << 20, MinWidth: 50, MinHeight: 50}

	format, err := policy.Validate(encodeJPEG(t, 100, 120))
	assert.NoError(t, err)
	assert.Equal(t, "jpeg", format)

	format, err = policy.Validate(encodePNG(t, 80, 60))
	assert.NoError(t, err)
	assert.Equal(t, "png", format)
}

func TestValidateRejections(t *testing.T) {
	policy := UploadPolicy{MaxBytes: 2048, MinWidth: 50, MinHeight: 50}

	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty payload", nil},
		{"garbage bytes", []byte("definitely not an image")},
		{"too small dimensions", encodePNG(t, 10, 10)},
		{"oversized payload", encodeJPEG(t, 200, 200)}, // exceeds the tiny 2KB ceiling
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := policy.Validate(tt.payload)
			require.Error(t, err)
			var vErr *ValidationError
			assert.ErrorAs(t, err, &vErr)
			assert.NotEmpty(t, vErr.Reason)
		})
	}
}

func TestValidateSniffsContentNotExtension(t *testing.T) {
	policy := UploadPolicy{MaxBytes: 1 << 20, MinWidth: 1, MinHeight: 1}
	// a bmp header should be rejected even though it decodes nowhere here
	_, err := policy.Validate([]byte("BM\x00\x00\x00\x00"))
	assert.Error(t, err)
}
