package models

// orientation values stored on a shared image
const (
	OrientationFront = "front"
	OrientationBack  = "back"
)

// SharedImage represents the single community reference photo for one card
// fingerprint. It corresponds to the 'shared_images' table.
//
// The fingerprint primary key is what enforces first-writer-wins: a second
// publish for the same fingerprint fails the INSERT with a unique constraint
// violation, which the repository reports as ErrAlreadyExists. Rows are never
// updated in place; hiding is tracked by the moderation ledger, not here.
type SharedImage struct {
	Fingerprint string `gorm:"primaryKey" json:"fingerprint"`
	ImagePath   string `gorm:"not null" json:"image_path"` // path relative to the media storage root
	Orientation string `gorm:"not null;default:front" json:"orientation"`
	Slabbed     bool   `gorm:"not null;default:false" json:"slabbed"`
	OwnerID     string `gorm:"not null;index" json:"owner_id"`

	// capture metadata pulled from EXIF at publish time
	CameraMake  *string `gorm:"" json:"camera_make,omitempty"`  // Nullable
	CameraModel *string `gorm:"" json:"camera_model,omitempty"` // Nullable
	TakenAt     *int64  `gorm:"" json:"taken_at,omitempty"`     // Nullable, Unix timestamp

	CreatedAt int64 `gorm:"not null" json:"created_at"` // Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (SharedImage) TableName() string {
	return "shared_images"
}
