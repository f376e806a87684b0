package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"sort"

	"github.com/facette/natsort"
	"github.com/go-chi/chi/v5"

	"github.com/cardbinder/cardbinderbackend/imagecache"
	"github.com/cardbinder/cardbinderbackend/media"
	"github.com/cardbinder/cardbinderbackend/workers"
)

// CollectionHandler exposes a collector's quota-bounded image cache. Image
// storage is best-effort: capacity exhaustion reports stored=false rather
// than an error, and the surrounding card stays fully usable without a photo.
type CollectionHandler struct {
	Caches    *imagecache.Manager
	Policy    media.UploadPolicy
	Rebuilder *workers.ThumbnailRebuilder
}

func (ch *CollectionHandler) cache(w http.ResponseWriter, r *http.Request) (*imagecache.Cache, string, bool) {
	owner := chi.URLParam(r, "owner_id")
	card := chi.URLParam(r, "card_id")
	if owner == "" {
		WriteAPIError(w, http.StatusBadRequest, CodeValidation, "owner_id is required")
		return nil, "", false
	}
	cache, err := ch.Caches.For(owner)
	if err != nil {
		log.Printf("Error opening cache for %s: %v", owner, err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to open image cache")
		return nil, "", false
	}
	return cache, card, true
}

// PutImage stores a card photo, replacing any existing one, and regenerates
// the thumbnail so it always derives from the exact payload stored.
func (ch *CollectionHandler) PutImage(w http.ResponseWriter, r *http.Request) {
	cache, card, ok := ch.cache(w, r)
	if !ok {
		return
	}
	if card == "" {
		WriteAPIError(w, http.StatusBadRequest, CodeValidation, "card_id is required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, ch.Policy.MaxBytes+1)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		WriteAPIError(w, http.StatusRequestEntityTooLarge, CodeValidation, "request body exceeds the upload limit")
		return
	}

	if _, err := ch.Policy.Validate(payload); err != nil {
		var vErr *media.ValidationError
		if errors.As(err, &vErr) {
			WriteAPIError(w, http.StatusBadRequest, CodeValidation, vErr.Reason)
			return
		}
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to validate image")
		return
	}

	stored := cache.Put(card, payload)
	thumbStored := false
	if stored {
		_, thumbStored = cache.PutThumbnail(card, payload)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stored":           stored,
		"thumbnail_stored": thumbStored,
		"size":             len(payload),
	})
}

// GetImage serves the cached full-size photo for a card.
func (ch *CollectionHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	cache, card, ok := ch.cache(w, r)
	if !ok {
		return
	}
	payload, found := cache.Get(card)
	if !found {
		WriteAPIError(w, http.StatusNotFound, CodeNotFound, "no image cached for this card")
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(payload))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		log.Printf("Error writing image response: %v", err)
	}
}

// GetThumbnail serves the cached thumbnail for a card.
func (ch *CollectionHandler) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	cache, card, ok := ch.cache(w, r)
	if !ok {
		return
	}
	payload, found := cache.GetThumbnail(card)
	if !found {
		WriteAPIError(w, http.StatusNotFound, CodeNotFound, "no thumbnail cached for this card")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		log.Printf("Error writing thumbnail response: %v", err)
	}
}

// DeleteImage removes the photo and thumbnail for a card. Deleting an absent
// entry succeeds.
func (ch *CollectionHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	cache, card, ok := ch.cache(w, r)
	if !ok {
		return
	}
	cache.Remove(card)
	w.WriteHeader(http.StatusNoContent)
}

// ListImages returns the collector's cached card keys, natural-sorted so
// card numbers like "2" and "12a" order the way humans expect.
func (ch *CollectionHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	cache, _, ok := ch.cache(w, r)
	if !ok {
		return
	}

	entries := cache.Entries()
	byKey := make(map[string]imagecache.Entry, len(entries))
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		byKey[entry.Key] = entry
		keys = append(keys, entry.Key)
	}
	natsort.Sort(keys)

	ordered := make([]imagecache.Entry, 0, len(keys))
	for _, key := range keys {
		ordered = append(ordered, byKey[key])
	}

	imageBytes, thumbBytes := cache.Usage()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries":         ordered,
		"image_bytes":     imageBytes,
		"thumbnail_bytes": thumbBytes,
	})
}

// Restore bulk-replaces the collector's cache from a backup. Entries are
// base64 payloads keyed by card. Oversized backups lose their largest
// entries first and the response flags the partial restore so the caller can
// warn the user. Thumbnails are rebuilt in the background.
func (ch *CollectionHandler) Restore(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner_id")
	cache, _, ok := ch.cache(w, r)
	if !ok {
		return
	}

	var req struct {
		Images map[string]string `json:"images"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeValidation, "Invalid request body: "+err.Error())
		return
	}

	complete := true
	next := make(map[string][]byte, len(req.Images))
	skipped := make([]string, 0)
	for key, encoded := range req.Images {
		payload, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			complete = false
			skipped = append(skipped, key)
			continue
		}
		if _, err := ch.Policy.Validate(payload); err != nil {
			complete = false
			skipped = append(skipped, key)
			continue
		}
		next[key] = payload
	}
	sort.Strings(skipped)

	if !cache.ReplaceAll(next) {
		complete = false
	}
	ch.Rebuilder.QueueJob(workers.RebuildJob{OwnerID: owner})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"complete": complete,
		"restored": len(next),
		"skipped":  skipped,
	})
}
