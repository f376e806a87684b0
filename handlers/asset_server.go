package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/cardbinder/cardbinderbackend/repository"
)

// SharedImageHidden builds the moderation guard for the shared asset route.
// It maps a served path back to its record and withholds the file when the
// ledger hides the fingerprint. Unattributable paths and lookup failures are
// withheld too: hashed paths are derivable from fingerprints, so serving
// without a visibility answer would bypass the ledger.
func SharedImageHidden(shared repository.SharedImageRepositoryInterface, moderation repository.ModerationRepositoryInterface) func(relPath string) bool {
	return func(relPath string) bool {
		record, err := shared.GetByImagePath(relPath)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("Error resolving shared asset %s: %v", relPath, err)
			}
			return true
		}
		hidden, err := moderation.IsHidden(record.Fingerprint)
		if err != nil {
			log.Printf("Error computing visibility for %s: %v", record.Fingerprint, err)
			return true
		}
		return hidden
	}
}

// AssetServer creates a handler that serves shared image files from a
// subdirectory of the media storage root. The request path carries the
// relative path within that subdirectory, e.g.
//
//	r.Get("/shared/*", AssetServer(cfg.MediaStoragePath, "shared", guard))
//
// hidden receives the subDir-relative path of each existing file before it is
// served; returning true withholds the file with a 404. A nil guard serves
// everything.
func AssetServer(baseStoragePath, subDir string, hidden func(relPath string) bool) http.HandlerFunc {
	fullAssetDirPath := filepath.Clean(filepath.Join(baseStoragePath, subDir))
	log.Printf("Serving assets for '/%s/*' from directory: %s", subDir, fullAssetDirPath)

	if !strings.HasPrefix(fullAssetDirPath, baseStoragePath) {
		log.Fatalf("FATAL: Asset subdirectory '%s' resolved outside base storage path '%s'", subDir, baseStoragePath)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		routePrefix := "/api/assets/" + subDir + "/"
		relativePath := strings.TrimPrefix(r.URL.Path, routePrefix)

		if relativePath == "" || strings.Contains(relativePath, "..") {
			http.Error(w, "Invalid asset path", http.StatusBadRequest)
			return
		}

		cleanedAssetPath := filepath.Clean(filepath.Join(fullAssetDirPath, relativePath))
		if !strings.HasPrefix(cleanedAssetPath, fullAssetDirPath) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			log.Printf("SECURITY: Attempted asset access outside designated directory: Request='%s', Resolved='%s'",
				r.URL.Path, cleanedAssetPath)
			return
		}

		if _, err := os.Stat(cleanedAssetPath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		} else if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			log.Printf("Error stating asset file %s: %v", cleanedAssetPath, err)
			return
		}

		if hidden != nil && hidden(subDir+"/"+relativePath) {
			http.NotFound(w, r)
			return
		}

		cacheDuration := 24 * time.Hour
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(cacheDuration.Seconds())))
		w.Header().Set("Expires", time.Now().Add(cacheDuration).Format(http.TimeFormat))

		http.ServeFile(w, r, cleanedAssetPath)
	}
}
