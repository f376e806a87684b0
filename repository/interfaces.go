package repository

import (
	"github.com/cardbinder/cardbinderbackend/models"
)

// SharedImageRepositoryInterface defines the methods for shared image data
// operations
type SharedImageRepositoryInterface interface {
	Publish(record *models.SharedImage, payload []byte, format string) error
	GetByFingerprint(fingerprint string) (*models.SharedImage, error)
	GetByFingerprints(fingerprints []string) (map[string]*models.SharedImage, error)
	GetByImagePath(imagePath string) (*models.SharedImage, error)
}

// ModerationRepositoryInterface defines the methods for moderation ledger
// operations
type ModerationRepositoryInterface interface {
	Report(fingerprint, reason string) (*models.ModerationRecord, error)
	Approve(fingerprint string) error
	Block(fingerprint string) error
	Clear(fingerprint string) error
	IsHidden(fingerprint string) (bool, error)
	GetByFingerprint(fingerprint string) (*models.ModerationRecord, error)
	GetByFingerprints(fingerprints []string) (map[string]*models.ModerationRecord, error)
	ListAll() ([]models.ModerationRecord, error)
	Threshold() int64
}
