package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/cardbinder/cardbinderbackend/models"
)

// ModerationRepository handles database operations for the moderation ledger.
// It owns the hide threshold so every surface computes hidden-state the same
// way.
type ModerationRepository struct {
	DB            *gorm.DB
	HideThreshold int64
}

// NewModerationRepository creates a new instance of ModerationRepository
func NewModerationRepository(db *gorm.DB, hideThreshold int64) *ModerationRepository {
	return &ModerationRepository{DB: db, HideThreshold: hideThreshold}
}

// Threshold returns the configured hide threshold.
func (r *ModerationRepository) Threshold() int64 {
	return r.HideThreshold
}

// Report creates the record if absent and, in one transaction, increments the
// report count and the histogram bucket for the normalized reason. The count
// update is an in-database increment, never a client-computed absolute value,
// so near-simultaneous reports are both reflected. Reports never change
// status; only admin actions do.
func (r *ModerationRepository) Report(fingerprint, reason string) (*models.ModerationRecord, error) {
	if fingerprint == "" {
		return nil, ErrEmptyFingerprint
	}
	reason = models.NormalizeReason(reason)

	var out models.ModerationRecord
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		now := time.Now().Unix()
		record := models.ModerationRecord{
			Fingerprint: fingerprint,
			Status:      models.ModerationStatusActive,
			Reasons:     "{}",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Where(models.ModerationRecord{Fingerprint: fingerprint}).FirstOrCreate(&record).Error; err != nil {
			return fmt.Errorf("failed to ensure moderation record for %s: %w", fingerprint, err)
		}

		counts, err := record.ReasonCounts()
		if err != nil {
			return fmt.Errorf("failed to decode reasons histogram for %s: %w", fingerprint, err)
		}
		counts[reason]++
		if err := record.SetReasonCounts(counts); err != nil {
			return fmt.Errorf("failed to encode reasons histogram for %s: %w", fingerprint, err)
		}

		updates := map[string]interface{}{
			"report_count": gorm.Expr("report_count + 1"),
			"reasons":      record.Reasons,
			"updated_at":   now,
		}
		if err := tx.Model(&models.ModerationRecord{}).Where("fingerprint = ?", fingerprint).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to record report for %s: %w", fingerprint, err)
		}

		return tx.Where("fingerprint = ?", fingerprint).First(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Approve sets status to approved and zeroes the count and histogram. The
// image stays visible until an explicit block, regardless of new reports.
func (r *ModerationRepository) Approve(fingerprint string) error {
	return r.setStatus(fingerprint, models.ModerationStatusApproved, true)
}

// Block sets status to blocked, hiding the image unconditionally. The count
// and histogram are kept as evidence.
func (r *ModerationRepository) Block(fingerprint string) error {
	return r.setStatus(fingerprint, models.ModerationStatusBlocked, false)
}

// Clear resets the record to a fresh active state with a zeroed count and
// histogram; reports then re-accumulate normally.
func (r *ModerationRepository) Clear(fingerprint string) error {
	return r.setStatus(fingerprint, models.ModerationStatusActive, true)
}

func (r *ModerationRepository) setStatus(fingerprint, status string, reset bool) error {
	if fingerprint == "" {
		return ErrEmptyFingerprint
	}
	now := time.Now().Unix()

	return r.DB.Transaction(func(tx *gorm.DB) error {
		record := models.ModerationRecord{
			Fingerprint: fingerprint,
			Status:      status,
			Reasons:     "{}",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		// admin actions may target fingerprints nobody has reported yet
		if err := tx.Where(models.ModerationRecord{Fingerprint: fingerprint}).FirstOrCreate(&record).Error; err != nil {
			return fmt.Errorf("failed to ensure moderation record for %s: %w", fingerprint, err)
		}

		updates := map[string]interface{}{
			"status":     status,
			"updated_at": now,
		}
		if reset {
			updates["report_count"] = 0
			updates["reasons"] = "{}"
		}
		if err := tx.Model(&models.ModerationRecord{}).Where("fingerprint = ?", fingerprint).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to set moderation status %s for %s: %w", status, fingerprint, err)
		}
		return nil
	})
}

// IsHidden computes the hidden state for a fingerprint. A fingerprint with no
// moderation record is visible.
func (r *ModerationRepository) IsHidden(fingerprint string) (bool, error) {
	record, err := r.GetByFingerprint(fingerprint)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return record.Hidden(r.HideThreshold), nil
}

// GetByFingerprint retrieves a moderation record
func (r *ModerationRepository) GetByFingerprint(fingerprint string) (*models.ModerationRecord, error) {
	if fingerprint == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var record models.ModerationRecord
	err := r.DB.Where("fingerprint = ?", fingerprint).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get moderation record for %s: %w", fingerprint, err)
	}
	return &record, nil
}

// GetByFingerprints retrieves multiple moderation records in one query,
// omitting fingerprints with no record. Batched lookups compute hidden-state
// from the returned records instead of asking per fingerprint.
func (r *ModerationRepository) GetByFingerprints(fingerprints []string) (map[string]*models.ModerationRecord, error) {
	result := make(map[string]*models.ModerationRecord)
	if len(fingerprints) == 0 {
		return result, nil
	}

	var records []models.ModerationRecord
	err := r.DB.Where("fingerprint IN ?", fingerprints).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get moderation records by fingerprints: %w", err)
	}
	for i := range records {
		result[records[i].Fingerprint] = &records[i]
	}
	return result, nil
}

// ListAll returns every moderation record, most recently updated first, for
// the admin review surface.
func (r *ModerationRepository) ListAll() ([]models.ModerationRecord, error) {
	var records []models.ModerationRecord
	err := r.DB.Order("updated_at DESC, fingerprint ASC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list moderation records: %w", err)
	}
	return records, nil
}
