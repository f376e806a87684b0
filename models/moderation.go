package models

import "encoding/json"

// moderation statuses; exactly these three literals are persisted
const (
	ModerationStatusActive   = "active"
	ModerationStatusBlocked  = "blocked"
	ModerationStatusApproved = "approved"
)

// ReasonOther is the catch-all bucket for empty or unrecognized report reasons.
const ReasonOther = "Other"

// CanonicalReasons is the closed set of report reasons accepted at the
// boundary. Anything outside it lands in ReasonOther so free text never leaks
// into the histogram key space.
var CanonicalReasons = []string{
	"Not a card photo",
	"Inappropriate",
	"Miscategorized",
	"Wrong card",
	ReasonOther,
}

// NormalizeReason maps an incoming reason onto the canonical set.
func NormalizeReason(reason string) string {
	for _, r := range CanonicalReasons {
		if reason == r {
			return r
		}
	}
	return ReasonOther
}

// ModerationRecord accumulates user reports against a shared image
// fingerprint. It corresponds to the 'moderation_records' table.
//
// A record exists independently of the shared image itself: reports can
// outlive the image and can even predate one. Rows are created lazily on the
// first report and are never deleted automatically.
type ModerationRecord struct {
	Fingerprint string `gorm:"primaryKey" json:"fingerprint"`
	ReportCount int64  `gorm:"not null;default:0" json:"report_count"`
	Reasons     string `gorm:"not null;default:'{}'" json:"-"` // JSON histogram, reason -> count
	Status      string `gorm:"not null;default:active;index" json:"status"`
	CreatedAt   int64  `gorm:"not null" json:"created_at"`        // Unix timestamp
	UpdatedAt   int64  `gorm:"not null;index" json:"updated_at"`  // Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (ModerationRecord) TableName() string {
	return "moderation_records"
}

// Hidden is the single hide decision used by every surface. blocked always
// hides, approved always shows, and an active record hides once its count
// reaches the configured threshold.
func (m *ModerationRecord) Hidden(threshold int64) bool {
	switch m.Status {
	case ModerationStatusBlocked:
		return true
	case ModerationStatusApproved:
		return false
	default:
		return m.ReportCount >= threshold
	}
}

// ReasonCounts decodes the stored histogram. A missing or empty column
// decodes to an empty map.
func (m *ModerationRecord) ReasonCounts() (map[string]int64, error) {
	counts := map[string]int64{}
	if m.Reasons == "" {
		return counts, nil
	}
	if err := json.Unmarshal([]byte(m.Reasons), &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

// SetReasonCounts encodes the histogram back into the Reasons column.
func (m *ModerationRecord) SetReasonCounts(counts map[string]int64) error {
	data, err := json.Marshal(counts)
	if err != nil {
		return err
	}
	m.Reasons = string(data)
	return nil
}
