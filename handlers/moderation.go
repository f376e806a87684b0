package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"gorm.io/gorm"

	"github.com/cardbinder/cardbinderbackend/database"
	"github.com/cardbinder/cardbinderbackend/models"
	"github.com/cardbinder/cardbinderbackend/repository"
)

// ModerationHandler exposes reporting for viewers and the review surface for
// administrators.
type ModerationHandler struct {
	Repo    repository.ModerationRepositoryInterface
	StatsDB *sql.DB
}

type moderationRecordResponse struct {
	Fingerprint string           `json:"fingerprint"`
	ReportCount int64            `json:"report_count"`
	Reasons     map[string]int64 `json:"reasons"`
	Status      string           `json:"status"`
	Hidden      bool             `json:"hidden"`
	UpdatedAt   int64            `json:"updated_at"`
}

func (mh *ModerationHandler) respond(record *models.ModerationRecord) moderationRecordResponse {
	counts, err := record.ReasonCounts()
	if err != nil {
		log.Printf("Error decoding reasons histogram for %s: %v", record.Fingerprint, err)
		counts = map[string]int64{}
	}
	return moderationRecordResponse{
		Fingerprint: record.Fingerprint,
		ReportCount: record.ReportCount,
		Reasons:     counts,
		Status:      record.Status,
		Hidden:      record.Hidden(mh.Repo.Threshold()),
		UpdatedAt:   record.UpdatedAt,
	}
}

// Report registers one viewer report against a fingerprint. Unknown reasons
// land in the "Other" bucket; the response carries the updated count and
// hidden state.
func (mh *ModerationHandler) Report(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fingerprint string `json:"fingerprint"`
		Reason      string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeValidation, "Invalid request body: "+err.Error())
		return
	}
	if req.Fingerprint == "" {
		WriteAPIError(w, http.StatusBadRequest, CodeValidation, "fingerprint is required")
		return
	}

	record, err := mh.Repo.Report(req.Fingerprint, req.Reason)
	if err != nil {
		log.Printf("Error recording report for %s: %v", req.Fingerprint, err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to record report")
		return
	}
	writeJSON(w, http.StatusOK, mh.respond(record))
}

// Visibility answers the single question every card surface asks: is this
// fingerprint's shared image hidden right now?
func (mh *ModerationHandler) Visibility(w http.ResponseWriter, r *http.Request) {
	fp := r.URL.Query().Get("fingerprint")
	if fp == "" {
		WriteAPIError(w, http.StatusBadRequest, CodeValidation, "fingerprint query parameter is required")
		return
	}
	hidden, err := mh.Repo.IsHidden(fp)
	if err != nil {
		log.Printf("Error computing visibility for %s: %v", fp, err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to compute visibility")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"hidden": hidden})
}

// List returns every moderation record, most recently updated first.
func (mh *ModerationHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := mh.Repo.ListAll()
	if err != nil {
		log.Printf("Error listing moderation records: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to list moderation records")
		return
	}

	responses := make([]moderationRecordResponse, len(records))
	for i := range records {
		responses[i] = mh.respond(&records[i])
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"records": responses})
}

// Stats returns the aggregate ledger summary for the admin dashboard.
func (mh *ModerationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := database.GetModerationStats(mh.StatsDB)
	if err != nil {
		log.Printf("Error computing moderation stats: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to compute moderation stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (mh *ModerationHandler) adminAction(w http.ResponseWriter, r *http.Request, action func(string) error, resultStatus string) {
	var req struct {
		Fingerprint string `json:"fingerprint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeValidation, "Invalid request body: "+err.Error())
		return
	}
	if req.Fingerprint == "" {
		WriteAPIError(w, http.StatusBadRequest, CodeValidation, "fingerprint is required")
		return
	}

	if err := action(req.Fingerprint); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, CodeNotFound, "no moderation record for this fingerprint")
			return
		}
		log.Printf("Error applying moderation action for %s: %v", req.Fingerprint, err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to apply moderation action")
		return
	}

	record, err := mh.Repo.GetByFingerprint(req.Fingerprint)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": resultStatus})
		return
	}
	writeJSON(w, http.StatusOK, mh.respond(record))
}

// Approve marks the image visible and zeroes the count and histogram.
func (mh *ModerationHandler) Approve(w http.ResponseWriter, r *http.Request) {
	mh.adminAction(w, r, mh.Repo.Approve, models.ModerationStatusApproved)
}

// Block hides the image unconditionally.
func (mh *ModerationHandler) Block(w http.ResponseWriter, r *http.Request) {
	mh.adminAction(w, r, mh.Repo.Block, models.ModerationStatusBlocked)
}

// Clear resets the record to a fresh active state.
func (mh *ModerationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	mh.adminAction(w, r, mh.Repo.Clear, models.ModerationStatusActive)
}
