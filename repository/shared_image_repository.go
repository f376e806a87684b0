package repository

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/cardbinder/cardbinderbackend/media"
	"github.com/cardbinder/cardbinderbackend/models"
)

// ErrAlreadyExists is returned by Publish when a shared image already exists
// for the fingerprint. Callers should treat it as success-adjacent: someone
// already shared this card.
var ErrAlreadyExists = errors.New("a shared image already exists for this fingerprint")

// ErrEmptyFingerprint is returned when an operation is attempted against an
// empty fingerprint, which carries no card identity.
var ErrEmptyFingerprint = errors.New("fingerprint is empty")

// SharedImageRepository handles database and blob operations for SharedImage
// entities. Rows are immutable once published; uniqueness is enforced by the
// fingerprint primary key, never by an application-level existence check.
type SharedImageRepository struct {
	DB    *gorm.DB
	Store media.Store
}

// NewSharedImageRepository creates a new instance of SharedImageRepository
func NewSharedImageRepository(db *gorm.DB, store media.Store) *SharedImageRepository {
	return &SharedImageRepository{DB: db, Store: store}
}

// Publish inserts the record and writes the payload content-addressed under
// the fingerprint. The row insert goes first so the database's unique
// constraint decides any publish race: the loser's insert fails and it never
// touches the winner's file. A retried publish after an unobserved success
// lands here too, which is exactly the safe outcome.
func (r *SharedImageRepository) Publish(record *models.SharedImage, payload []byte, format string) error {
	if record.Fingerprint == "" {
		return ErrEmptyFingerprint
	}

	record.ImagePath = media.SharedImagePath(record.Fingerprint, format)
	if record.Orientation == "" {
		record.Orientation = models.OrientationFront
	}
	if record.CreatedAt == 0 {
		record.CreatedAt = time.Now().Unix()
	}

	if err := r.DB.Create(record).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to publish shared image for %s: %w", record.Fingerprint, err)
	}

	if _, err := r.Store.SaveShared(record.Fingerprint, format, bytes.NewReader(payload)); err != nil {
		// compensate: without the payload the row is useless, and keeping it
		// would block the next publisher forever
		if delErr := r.DB.Where("fingerprint = ?", record.Fingerprint).Delete(&models.SharedImage{}).Error; delErr != nil {
			log.Printf("repository: failed to roll back shared image row for %s: %v", record.Fingerprint, delErr)
		}
		return fmt.Errorf("failed to store shared image payload for %s: %w", record.Fingerprint, err)
	}
	return nil
}

// GetByFingerprint retrieves a shared image record
func (r *SharedImageRepository) GetByFingerprint(fingerprint string) (*models.SharedImage, error) {
	if fingerprint == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var record models.SharedImage
	err := r.DB.Where("fingerprint = ?", fingerprint).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get shared image for %s: %w", fingerprint, err)
	}
	return &record, nil
}

// GetByFingerprints retrieves multiple shared image records in one query,
// omitting fingerprints with no record. Listing surfaces use this to avoid a
// round trip per card.
func (r *SharedImageRepository) GetByFingerprints(fingerprints []string) (map[string]*models.SharedImage, error) {
	result := make(map[string]*models.SharedImage)
	if len(fingerprints) == 0 {
		return result, nil
	}

	var records []models.SharedImage
	err := r.DB.Where("fingerprint IN ?", fingerprints).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get shared images by fingerprints: %w", err)
	}
	for i := range records {
		result[records[i].Fingerprint] = &records[i]
	}
	return result, nil
}

// GetByImagePath resolves a stored asset path back to its record. The asset
// server uses this to map a served file onto the fingerprint whose moderation
// state decides whether the file may be served at all.
func (r *SharedImageRepository) GetByImagePath(imagePath string) (*models.SharedImage, error) {
	if imagePath == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var record models.SharedImage
	err := r.DB.Where("image_path = ?", imagePath).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get shared image for path %s: %w", imagePath, err)
	}
	return &record, nil
}

// isUniqueViolation reports whether err is the sqlite unique/primary key
// constraint failure, the canonical "already exists" signal.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY constraint failed")
}
