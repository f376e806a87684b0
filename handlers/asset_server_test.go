package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardbinder/cardbinderbackend/database"
	"github.com/cardbinder/cardbinderbackend/media"
	"github.com/cardbinder/cardbinderbackend/models"
	"github.com/cardbinder/cardbinderbackend/repository"
)

func writeSharedAsset(t *testing.T, base, name string, payload []byte) {
	t.Helper()
	dir := filepath.Join(base, media.SharedSubDir)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), payload, 0644))
}

func getAsset(handler http.HandlerFunc, relPath string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/assets/"+relPath, nil))
	return rec
}

func TestAssetServerServesVisibleFiles(t *testing.T) {
	base := t.TempDir()
	writeSharedAsset(t, base, "card.jpg", []byte("jpeg-bytes"))

	handler := AssetServer(base, media.SharedSubDir, func(string) bool { return false })
	rec := getAsset(handler, "shared/card.jpg")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte("jpeg-bytes"), rec.Body.Bytes())
}

func TestAssetServerWithholdsHiddenFiles(t *testing.T) {
	base := t.TempDir()
	writeSharedAsset(t, base, "card.jpg", []byte("jpeg-bytes"))

	var askedFor string
	handler := AssetServer(base, media.SharedSubDir, func(relPath string) bool {
		askedFor = relPath
		return true
	})
	rec := getAsset(handler, "shared/card.jpg")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "shared/card.jpg", askedFor)
	assert.NotContains(t, rec.Body.String(), "jpeg-bytes")
}

// A viewer who knows a fingerprint can derive its hashed asset path, so the
// asset route itself must honor the ledger: blocked images are not served
// even by direct file URL, and approval restores them.
func TestAssetServerHonorsModerationLedger(t *testing.T) {
	base := t.TempDir()
	db, err := database.InitGormDB(filepath.Join(t.TempDir(), "cards.db"))
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(db))

	store, err := media.NewLocalStorage(base)
	require.NoError(t, err)
	sharedRepo := repository.NewSharedImageRepository(db, store)
	moderationRepo := repository.NewModerationRepository(db, 3)

	const fp = "y:1989|set:upper deck|no:#1|player:ken griffey jr."
	payload := []byte("owner-a-photo")
	require.NoError(t, sharedRepo.Publish(&models.SharedImage{Fingerprint: fp, OwnerID: "owner-a"}, payload, "jpeg"))

	handler := AssetServer(base, media.SharedSubDir, SharedImageHidden(sharedRepo, moderationRepo))
	relPath := media.SharedImagePath(fp, "jpeg")

	rec := getAsset(handler, relPath)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, payload, rec.Body.Bytes())

	require.NoError(t, moderationRepo.Block(fp))
	rec = getAsset(handler, relPath)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), "owner-a-photo")

	require.NoError(t, moderationRepo.Approve(fp))
	rec = getAsset(handler, relPath)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, rec.Body.Bytes())
}

// A file on disk with no database record is withheld rather than served.
func TestAssetServerWithholdsUnattributableFiles(t *testing.T) {
	base := t.TempDir()
	db, err := database.InitGormDB(filepath.Join(t.TempDir(), "cards.db"))
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(db))

	store, err := media.NewLocalStorage(base)
	require.NoError(t, err)
	sharedRepo := repository.NewSharedImageRepository(db, store)
	moderationRepo := repository.NewModerationRepository(db, 3)

	writeSharedAsset(t, base, "stray.jpg", []byte("stray-bytes"))
	handler := AssetServer(base, media.SharedSubDir, SharedImageHidden(sharedRepo, moderationRepo))

	rec := getAsset(handler, "shared/stray.jpg")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
