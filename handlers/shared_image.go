package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"gorm.io/gorm"

	"github.com/cardbinder/cardbinderbackend/classifier"
	"github.com/cardbinder/cardbinderbackend/media"
	"github.com/cardbinder/cardbinderbackend/models"
	"github.com/cardbinder/cardbinderbackend/repository"
)

// SharedImageHandler exposes the community reference image repository.
// Fingerprints travel in query parameters and JSON bodies rather than path
// segments because normalized attribute text can contain slashes.
type SharedImageHandler struct {
	Repo       repository.SharedImageRepositoryInterface
	Moderation repository.ModerationRepositoryInterface
	Classifier *classifier.Client // nil when no classifier is configured
	Policy     media.UploadPolicy
}

type sharedImageResponse struct {
	models.SharedImage
	Hidden bool `json:"hidden"`
}

func (sh *SharedImageHandler) respond(record *models.SharedImage, hidden bool) sharedImageResponse {
	resp := sharedImageResponse{SharedImage: *record, Hidden: hidden}
	if hidden {
		// a hidden image's payload location is withheld from viewers
		resp.ImagePath = ""
	}
	return resp
}

// Publish accepts a multipart upload (fields: fingerprint, orientation,
// slabbed, owner_id; file: image) and attempts first-writer-wins creation.
// A losing publish returns 409 with the existing record; callers should
// treat that as "someone already shared this card", not a failure.
func (sh *SharedImageHandler) Publish(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(16 << 20); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeValidation, "Invalid multipart form: "+err.Error())
		return
	}

	fp := r.FormValue("fingerprint")
	if fp == "" {
		WriteAPIError(w, http.StatusBadRequest, CodeValidation, "fingerprint is required; cards without attributes cannot be shared")
		return
	}
	ownerID := r.FormValue("owner_id")
	if ownerID == "" {
		WriteAPIError(w, http.StatusBadRequest, CodeValidation, "owner_id is required")
		return
	}
	orientation := r.FormValue("orientation")
	if orientation != "" && orientation != models.OrientationFront && orientation != models.OrientationBack {
		WriteAPIError(w, http.StatusBadRequest, CodeValidation, "orientation must be 'front' or 'back'")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeValidation, "image file is required")
		return
	}
	defer file.Close()
	payload, err := io.ReadAll(file)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeValidation, "failed to read image upload")
		return
	}

	format, err := sh.Policy.Validate(payload)
	if err != nil {
		var vErr *media.ValidationError
		if errors.As(err, &vErr) {
			WriteAPIError(w, http.StatusBadRequest, CodeValidation, vErr.Reason)
			return
		}
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to validate image")
		return
	}

	if sh.Classifier != nil {
		verdict, err := sh.Classifier.Check(r.Context(), payload)
		if err != nil {
			// classification is advisory; report-based moderation remains the
			// backstop when the classifier is unreachable
			log.Printf("classifier unavailable, publishing without verdict: %v", err)
		} else if !verdict.Allowed {
			WriteAPIError(w, http.StatusUnprocessableEntity, CodeValidation,
				"image rejected by classifier: "+verdict.Label)
			return
		}
	}

	capture := media.ExtractCaptureMetadata(payload)
	record := &models.SharedImage{
		Fingerprint: fp,
		Orientation: orientation,
		Slabbed:     r.FormValue("slabbed") == "true",
		OwnerID:     ownerID,
		CameraMake:  capture.CameraMake,
		CameraModel: capture.CameraModel,
		TakenAt:     capture.TakenAt,
	}

	err = sh.Repo.Publish(record, payload, format)
	if errors.Is(err, repository.ErrAlreadyExists) {
		existing, getErr := sh.Repo.GetByFingerprint(fp)
		if getErr != nil {
			// raced with a publish we cannot read back; report the conflict alone
			WriteAPIError(w, http.StatusConflict, CodeAlreadyExists, "a shared image already exists for this fingerprint")
			return
		}
		hidden, hErr := sh.Moderation.IsHidden(fp)
		if hErr != nil {
			log.Printf("Error computing visibility for %s on duplicate publish: %v", fp, hErr)
		}
		writeJSON(w, http.StatusConflict, sh.respond(existing, hidden))
		return
	}
	if err != nil {
		log.Printf("Error publishing shared image for %s: %v", fp, err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to publish shared image")
		return
	}

	writeJSON(w, http.StatusCreated, sh.respond(record, false))
}

// Get returns the shared image record for ?fingerprint=..., with its hidden
// state folded in so every surface shows the same visibility.
func (sh *SharedImageHandler) Get(w http.ResponseWriter, r *http.Request) {
	fp := r.URL.Query().Get("fingerprint")
	if fp == "" {
		WriteAPIError(w, http.StatusBadRequest, CodeValidation, "fingerprint query parameter is required")
		return
	}

	record, err := sh.Repo.GetByFingerprint(fp)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, CodeNotFound, "no shared image for this fingerprint")
			return
		}
		log.Printf("Error fetching shared image for %s: %v", fp, err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to fetch shared image")
		return
	}

	hidden, err := sh.Moderation.IsHidden(fp)
	if err != nil {
		log.Printf("Error computing visibility for %s: %v", fp, err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to compute visibility")
		return
	}
	writeJSON(w, http.StatusOK, sh.respond(record, hidden))
}

// GetBatch performs the batched lookup used by listing views: one request for
// many fingerprints, with misses omitted.
func (sh *SharedImageHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fingerprints []string `json:"fingerprints"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeValidation, "Invalid request body: "+err.Error())
		return
	}

	records, err := sh.Repo.GetByFingerprints(req.Fingerprints)
	if err != nil {
		log.Printf("Error in batched shared image lookup: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to fetch shared images")
		return
	}

	// one moderation query for the whole batch; absent records are visible
	modRecords, err := sh.Moderation.GetByFingerprints(req.Fingerprints)
	if err != nil {
		log.Printf("Error in batched visibility lookup: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to compute visibility")
		return
	}

	threshold := sh.Moderation.Threshold()
	result := make(map[string]sharedImageResponse, len(records))
	for fp, record := range records {
		hidden := false
		if mod, ok := modRecords[fp]; ok {
			hidden = mod.Hidden(threshold)
		}
		result[fp] = sh.respond(record, hidden)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"images": result})
}
