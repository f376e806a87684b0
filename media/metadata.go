package media

import (
	"bytes"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
)

// CaptureMetadata is the EXIF subset recorded on a shared image at publish
// time. All fields are optional; photos routinely carry no EXIF at all.
type CaptureMetadata struct {
	CameraMake  *string
	CameraModel *string
	TakenAt     *int64 // Unix timestamp
}

// getString safely reads a string tag, trimming null terminators.
func getString(exifData *exif.Exif, tagName exif.FieldName) *string {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	// tag strings may carry trailing null chars
	val := strings.Trim(strings.TrimRight(tag.String(), "\x00"), `"`)
	if val == "" {
		return nil
	}
	return &val
}

// ExtractCaptureMetadata pulls camera make/model and the capture time from a
// payload's EXIF block. A payload without EXIF yields an empty result, never
// an error; missing metadata is not a reason to refuse a photo.
func ExtractCaptureMetadata(payload []byte) CaptureMetadata {
	exifData, err := exif.Decode(bytes.NewReader(payload))
	if err != nil {
		return CaptureMetadata{}
	}

	meta := CaptureMetadata{
		CameraMake:  getString(exifData, exif.Make),
		CameraModel: getString(exifData, exif.Model),
	}

	if dt, err := exifData.DateTime(); err == nil {
		ts := dt.Unix()
		meta.TakenAt = &ts
	}
	return meta
}
