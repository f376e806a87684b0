package media

import (
	"bytes"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// formats accepted into the cache and the shared repository, keyed by the
// name image.DecodeConfig reports. Detection is by content, not extension.
var allowedFormats = map[string]bool{
	"jpeg": true,
	"png":  true,
	"gif":  true,
}

// ValidationError describes why an upload was rejected. It is surfaced to the
// caller before any store is touched.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// UploadPolicy is the configured acceptance policy for incoming images:
// a format allow-list, a byte ceiling, and minimum decoded dimensions.
type UploadPolicy struct {
	MaxBytes  int64
	MinWidth  int
	MinHeight int
}

// Validate checks payload against the policy and returns the sniffed format
// name. Every rejection is a *ValidationError with a descriptive reason.
func (p UploadPolicy) Validate(payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", &ValidationError{Reason: "empty image payload"}
	}
	if p.MaxBytes > 0 && int64(len(payload)) > p.MaxBytes {
		return "", &ValidationError{Reason: fmt.Sprintf("image is %d bytes, exceeding the %d byte limit", len(payload), p.MaxBytes)}
	}

	config, format, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return "", &ValidationError{Reason: "unrecognized or malformed image data"}
	}
	if !allowedFormats[format] {
		return "", &ValidationError{Reason: fmt.Sprintf("unsupported image format %q (accepted: jpeg, png, gif)", format)}
	}
	if config.Width < p.MinWidth || config.Height < p.MinHeight {
		return "", &ValidationError{
			Reason: fmt.Sprintf("image is %dx%d, below the minimum of %dx%d", config.Width, config.Height, p.MinWidth, p.MinHeight),
		}
	}
	return format, nil
}
