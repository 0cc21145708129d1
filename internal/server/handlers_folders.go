package server

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/promptdock/internal/folders"
)

// PinFolderRequest is the payload for the pin/unpin endpoints.
type PinFolderRequest struct {
	FolderIDs []int64 `json:"folder_ids" validate:"required,min=1,max=100,dive,gt=0"`
}

// handleGetFolders returns the folders visible to the calling user as a
// nested tree, with display fields resolved for the request locale, plus
// the user's pinned set.
func (s *Service) handleGetFolders(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	loc := requestLocale(r)

	s.initMu.RLock()
	listing := s.listing
	pins := s.pins
	s.initMu.RUnlock()

	all, err := listing.ListForUser(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user", userID).Msg("Failed to list folders")
		writeJSONStatus(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"message": "Failed to load folders",
		})
		return
	}

	pinned, err := pins.GetPinnedFolderIDs(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user", userID).Msg("Failed to load pinned folders")
		writeJSONStatus(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"message": "Failed to load folders",
		})
		return
	}

	writeJSON(w, map[string]interface{}{
		"success":           true,
		"folders":           folders.BuildTree(all, loc),
		"pinned_folder_ids": pinned,
	})
}

// handlePinFolder adds folders to the user's pinned set. Unknown folder IDs
// are rejected; the merge itself is atomic against concurrent pins.
func (s *Service) handlePinFolder(w http.ResponseWriter, r *http.Request) {
	var req PinFolderRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		http.Error(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	userID := userIDFrom(r)

	s.initMu.RLock()
	listing := s.listing
	pins := s.pins
	s.initMu.RUnlock()

	existing, err := listing.ExistingIDs(r.Context(), req.FolderIDs)
	if err != nil {
		log.Error().Err(err).Str("user", userID).Msg("Failed to check folder ids")
		writeJSONStatus(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"message": "Failed to pin folders",
		})
		return
	}
	if len(existing) != len(req.FolderIDs) {
		writeJSONStatus(w, http.StatusNotFound, map[string]interface{}{
			"success": false,
			"message": "One or more folders do not exist",
		})
		return
	}

	if err := pins.MergePinnedFolderIDs(r.Context(), userID, existing); err != nil {
		log.Error().Err(err).Str("user", userID).Msg("Failed to pin folders")
		writeJSONStatus(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"message": "Failed to pin folders",
		})
		return
	}

	pinned, err := pins.GetPinnedFolderIDs(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user", userID).Msg("Failed to reload pinned folders")
		writeJSONStatus(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"message": "Failed to pin folders",
		})
		return
	}

	writeJSON(w, map[string]interface{}{
		"success":           true,
		"pinned_folder_ids": pinned,
	})
}

// handleUnpinFolder removes folders from the user's pinned set. Unpinning is
// the only way the pinned set shrinks; unknown IDs are no-ops.
func (s *Service) handleUnpinFolder(w http.ResponseWriter, r *http.Request) {
	var req PinFolderRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		http.Error(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	userID := userIDFrom(r)

	s.initMu.RLock()
	pins := s.pins
	s.initMu.RUnlock()

	for _, id := range req.FolderIDs {
		if err := pins.RemovePinnedFolderID(r.Context(), userID, id); err != nil {
			log.Error().Err(err).Str("user", userID).Int64("folder", id).Msg("Failed to unpin folder")
			writeJSONStatus(w, http.StatusInternalServerError, map[string]interface{}{
				"success": false,
				"message": "Failed to unpin folders",
			})
			return
		}
	}

	pinned, err := pins.GetPinnedFolderIDs(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user", userID).Msg("Failed to reload pinned folders")
		writeJSONStatus(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"message": "Failed to unpin folders",
		})
		return
	}

	writeJSON(w, map[string]interface{}{
		"success":           true,
		"pinned_folder_ids": pinned,
	})
}
