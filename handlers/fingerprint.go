package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/cardbinder/cardbinderbackend/fingerprint"
)

// BuildFingerprint computes the identity string for a set of card attributes.
// An empty result means the attributes carry no identity; callers must skip
// dedup and moderation lookups for it.
func BuildFingerprint(w http.ResponseWriter, r *http.Request) {
	var attrs fingerprint.Attributes
	if err := json.NewDecoder(r.Body).Decode(&attrs); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeValidation, "Invalid request body: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"fingerprint": fingerprint.Build(attrs)})
}
